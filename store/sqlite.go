package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/game"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	llm_ref    TEXT NOT NULL,
	setup_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_llm_ref ON sessions(llm_ref);
CREATE INDEX IF NOT EXISTS sessions_setup_id ON sessions(setup_id);
CREATE TABLE IF NOT EXISTS setups (
	id   TEXT PRIMARY KEY,
	data TEXT NOT NULL
);`

// SQLite is a Store backed by a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" keeps it in
// process memory.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	// one connection so ":memory:" is a single database and writes serialize
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (q *SQLite) CreateSession(ctx context.Context, s *game.Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO sessions (id, llm_ref, setup_id, created_at, data) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		s.ID, s.LLMRef, s.SetupID, s.CreatedAt.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

func (q *SQLite) GetSession(ctx context.Context, id string) (*game.Session, error) {
	var data string
	err := q.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return decodeSession([]byte(data))
}

func (q *SQLite) SaveSession(ctx context.Context, s *game.Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE sessions SET llm_ref = ?, setup_id = ?, data = ? WHERE id = ?`,
		s.LLMRef, s.SetupID, string(data), s.ID)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("session", s.ID)
	}
	return nil
}

func (q *SQLite) DeleteSession(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("session", id)
	}
	return nil
}

func (q *SQLite) ListSessions(ctx context.Context, f SessionFilter) ([]SessionSummary, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT data FROM sessions
		 WHERE (? = '' OR llm_ref = ?) AND (? = '' OR setup_id = ?)`,
		f.LLMRef, f.LLMRef, f.SetupID, f.SetupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		s, err := decodeSession([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, Summarize(s))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortSummaries(out)
	return out, nil
}

func (q *SQLite) PutSetup(ctx context.Context, s catalog.Setup) error {
	data, err := encodeSetup(s)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO setups (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		s.ID, string(data))
	if err != nil {
		return fmt.Errorf("failed to store setup %s: %w", s.ID, err)
	}
	return nil
}

func (q *SQLite) GetSetup(ctx context.Context, id string) (catalog.Setup, error) {
	var data string
	err := q.db.QueryRowContext(ctx, `SELECT data FROM setups WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Setup{}, notFound("setup", id)
	}
	if err != nil {
		return catalog.Setup{}, fmt.Errorf("failed to load setup %s: %w", id, err)
	}
	return decodeSetup([]byte(data))
}

func (q *SQLite) ListSetups(ctx context.Context) ([]catalog.Setup, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT data FROM setups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list setups: %w", err)
	}
	defer rows.Close()

	out := []catalog.Setup{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		s, err := decodeSetup([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *SQLite) Close() error {
	return q.db.Close()
}
