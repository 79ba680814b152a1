// Package store persists game sessions and setups. The memory, Badger and
// SQLite backends implement the same Store interface and hold sessions as
// JSON documents.
package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/game"
)

var (
	// ErrNotFound is returned when a session or setup does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExists is returned when creating a session whose id is taken.
	ErrExists = errors.New("already exists")
)

// SessionFilter narrows ListSessions. Empty fields match everything.
type SessionFilter struct {
	LLMRef  string
	SetupID string
}

func (f SessionFilter) match(llmRef, setupID string) bool {
	return (f.LLMRef == "" || f.LLMRef == llmRef) && (f.SetupID == "" || f.SetupID == setupID)
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID          string     `json:"id"`
	Mode        game.Mode  `json:"mode"`
	LLMRef      string     `json:"llm_ref"`
	SetupID     string     `json:"setup_id"`
	NextStage   game.Stage `json:"next_turn_name"`
	TotalTurns  int        `json:"total_turns"`
	TotalRounds int        `json:"total_rounds"`
	GameOver    bool       `json:"game_over"`
	GameSuccess bool       `json:"game_success"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Summarize builds the listing view of s.
func Summarize(s *game.Session) SessionSummary {
	return SessionSummary{
		ID:          s.ID,
		Mode:        s.Mode,
		LLMRef:      s.LLMRef,
		SetupID:     s.SetupID,
		NextStage:   s.NextStage,
		TotalTurns:  s.Stats.TotalTurns,
		TotalRounds: s.Stats.TotalRounds,
		GameOver:    s.GameOver,
		GameSuccess: s.GameSuccess,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// SessionStore holds sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *game.Session) error
	GetSession(ctx context.Context, id string) (*game.Session, error)
	SaveSession(ctx context.Context, s *game.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListSessions(ctx context.Context, f SessionFilter) ([]SessionSummary, error)
}

// SetupStore holds seeded game setups.
type SetupStore interface {
	PutSetup(ctx context.Context, s catalog.Setup) error
	GetSetup(ctx context.Context, id string) (catalog.Setup, error)
	ListSetups(ctx context.Context) ([]catalog.Setup, error)
}

// Store is the full persistence surface.
type Store interface {
	SessionStore
	SetupStore
	Close() error
}

func encodeSession(s *game.Session) ([]byte, error) {
	if s.ID == "" {
		return nil, errors.New("session id is required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	return data, nil
}

func decodeSession(data []byte) (*game.Session, error) {
	var s game.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func encodeSetup(s catalog.Setup) ([]byte, error) {
	if s.ID == "" {
		return nil, errors.New("setup id is required")
	}
	return json.Marshal(s)
}

func decodeSetup(data []byte) (catalog.Setup, error) {
	var s catalog.Setup
	if err := json.Unmarshal(data, &s); err != nil {
		return catalog.Setup{}, fmt.Errorf("failed to decode setup: %w", err)
	}
	return s, nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// sortSummaries orders newest first, then by id.
func sortSummaries(out []SessionSummary) {
	slices.SortFunc(out, func(a, b SessionSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortSetups(out []catalog.Setup) {
	slices.SortFunc(out, func(a, b catalog.Setup) int { return cmp.Compare(a.ID, b.ID) })
}
