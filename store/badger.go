package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/game"
)

const (
	sessionPrefix = "session/"
	setupPrefix   = "setup/"
)

// BadgerConfig configures a Badger store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

// badgerLogger adapts slog to badger's logger interface.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Badger is a Store backed by a Badger key-value database.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates a Badger store.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger store path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) get(key string, fn func([]byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(fn)
	})
}

func (b *Badger) CreateSession(ctx context.Context, s *game.Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	key := []byte(sessionPrefix + s.ID)
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

func (b *Badger) GetSession(ctx context.Context, id string) (*game.Session, error) {
	var s *game.Session
	err := b.get(sessionPrefix+id, func(v []byte) error {
		var err error
		s, err = decodeSession(v)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound("session", id)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (b *Badger) SaveSession(ctx context.Context, s *game.Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}
	key := []byte(sessionPrefix + s.ID)
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return notFound("session", s.ID)
		} else if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (b *Badger) DeleteSession(ctx context.Context, id string) error {
	key := []byte(sessionPrefix + id)
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return notFound("session", id)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// scan calls fn with the value of every key under prefix.
func (b *Badger) scan(prefix string, fn func([]byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Badger) ListSessions(ctx context.Context, f SessionFilter) ([]SessionSummary, error) {
	var out []SessionSummary
	err := b.scan(sessionPrefix, func(v []byte) error {
		s, err := decodeSession(v)
		if err != nil {
			return err
		}
		if f.match(s.LLMRef, s.SetupID) {
			out = append(out, Summarize(s))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSummaries(out)
	return out, nil
}

func (b *Badger) PutSetup(ctx context.Context, s catalog.Setup) error {
	data, err := encodeSetup(s)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(setupPrefix+s.ID), data)
	})
}

func (b *Badger) GetSetup(ctx context.Context, id string) (catalog.Setup, error) {
	var s catalog.Setup
	err := b.get(setupPrefix+id, func(v []byte) error {
		var err error
		s, err = decodeSetup(v)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return catalog.Setup{}, notFound("setup", id)
	}
	return s, err
}

func (b *Badger) ListSetups(ctx context.Context) ([]catalog.Setup, error) {
	out := []catalog.Setup{}
	err := b.scan(setupPrefix, func(v []byte) error {
		s, err := decodeSetup(v)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSetups(out)
	return out, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
