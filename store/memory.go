package store

import (
	"context"
	"slices"
	"sync"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/game"
)

// Memory is a Store kept in process memory. Sessions are cloned on the way
// in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session
	setups   map[string]catalog.Setup
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*game.Session),
		setups:   make(map[string]catalog.Setup),
	}
}

func (m *Memory) CreateSession(ctx context.Context, s *game.Session) error {
	if _, err := encodeSession(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, notFound("session", id)
	}
	return s.Clone(), nil
}

func (m *Memory) SaveSession(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return notFound("session", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return notFound("session", id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *Memory) ListSessions(ctx context.Context, f SessionFilter) ([]SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []SessionSummary
	for _, s := range m.sessions {
		if f.match(s.LLMRef, s.SetupID) {
			out = append(out, Summarize(s))
		}
	}
	sortSummaries(out)
	return out, nil
}

func (m *Memory) PutSetup(ctx context.Context, s catalog.Setup) error {
	if _, err := encodeSetup(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Classic = slices.Clone(s.Classic)
	s.Nightmare = slices.Clone(s.Nightmare)
	m.setups[s.ID] = s
	return nil
}

func (m *Memory) GetSetup(ctx context.Context, id string) (catalog.Setup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.setups[id]
	if !ok {
		return catalog.Setup{}, notFound("setup", id)
	}
	return s, nil
}

func (m *Memory) ListSetups(ctx context.Context) ([]catalog.Setup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.Setup, 0, len(m.setups))
	for _, s := range m.setups {
		out = append(out, s)
	}
	sortSetups(out)
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
