// Package registry is the table of playable games. Each game describes
// itself and seeds its setups into a store at startup.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/zhubert/turnbench-core/store"
)

// GameInfo is the display metadata of a game.
type GameInfo struct {
	Name        string `json:"game_name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IconURL     string `json:"icon_url,omitempty"`
}

// Game is a registered game.
type Game interface {
	Name() string
	CreateModel() GameInfo
	// EnsureSetupSeeded writes the game's setups to st unless they are all
	// present, and reports how many were written.
	EnsureSetupSeeded(ctx context.Context, st store.SetupStore) (int, error)
}

// Registry maps game names to games.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{games: make(map[string]Game)}
}

// Register adds g. Names must be unique.
func (r *Registry) Register(g Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[g.Name()]; ok {
		return fmt.Errorf("game %q already registered", g.Name())
	}
	r.games[g.Name()] = g
	return nil
}

// Get returns the game registered under name.
func (r *Registry) Get(name string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[name]
	return g, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.games))
	for name := range r.games {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Infos returns the metadata of every game, sorted by name.
func (r *Registry) Infos() []GameInfo {
	var out []GameInfo
	for _, name := range r.Names() {
		g, _ := r.Get(name)
		out = append(out, g.CreateModel())
	}
	return out
}

// SeedAll seeds the setups of every registered game.
func (r *Registry) SeedAll(ctx context.Context, st store.SetupStore, log *slog.Logger) error {
	for _, name := range r.Names() {
		g, _ := r.Get(name)
		n, err := g.EnsureSetupSeeded(ctx, st)
		if err != nil {
			return fmt.Errorf("failed to seed setups for %s: %w", name, err)
		}
		if n == 0 {
			log.Debug("game setups already seeded", "game", name)
			continue
		}
		log.Info("seeded game setups", "game", name, "count", n)
	}
	return nil
}
