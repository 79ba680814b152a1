// Package service is the public operation surface over sessions: it loads a
// session from the store, lets the engine play or edit it, and persists the
// result once the operation succeeds.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/engine"
	"github.com/zhubert/turnbench-core/game"
	"github.com/zhubert/turnbench-core/llm"
	"github.com/zhubert/turnbench-core/logger"
	"github.com/zhubert/turnbench-core/registry"
	"github.com/zhubert/turnbench-core/store"
)

// ProviderFactory builds the completion provider a session's LLM reference
// names.
type ProviderFactory func(llmRef string) (llm.Provider, error)

// Config configures a Service.
type Config struct {
	Store     store.Store
	Catalog   *catalog.Catalog
	Engine    *engine.Engine
	Providers ProviderFactory
	Games     *registry.Registry

	Style            catalog.PromptStyle
	DefaultMaxRounds int
	JSONMode         bool

	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
	// TranscriptPath names the file a finished session's transcript is
	// written to. Transcripts are not exported when it returns "".
	TranscriptPath func(sessionID string) (string, error)
}

// Service runs session operations.
type Service struct {
	store      store.Store
	catalog    *catalog.Catalog
	engine     *engine.Engine
	providers  ProviderFactory
	games      *registry.Registry
	style      catalog.PromptStyle
	maxRounds  int
	jsonMode   bool
	log        *slog.Logger
	now        func() time.Time
	newID      func() string
	transcript func(string) (string, error)
}

// New creates a service. Store, Catalog and Providers are required.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Catalog == nil || cfg.Providers == nil {
		return nil, errors.New("service requires a store, a catalog and a provider factory")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.TranscriptPath == nil {
		cfg.TranscriptPath = logger.TranscriptLogPath
	}
	if cfg.Style == (catalog.PromptStyle{}) {
		cfg.Style = catalog.DefaultStyle
	}
	if cfg.DefaultMaxRounds <= 0 {
		cfg.DefaultMaxRounds = 10
	}
	if cfg.Engine == nil {
		cfg.Engine = engine.New(engine.Config{
			Verifiers: cfg.Catalog,
			Logger:    cfg.Logger.With("component", "engine"),
			Now:       cfg.Now,
		})
	}
	if cfg.Games == nil {
		cfg.Games = registry.New()
		if err := cfg.Games.Register(registry.NewTurnbench(cfg.Catalog)); err != nil {
			return nil, err
		}
	}

	return &Service{
		store:      cfg.Store,
		catalog:    cfg.Catalog,
		engine:     cfg.Engine,
		providers:  cfg.Providers,
		games:      cfg.Games,
		style:      cfg.Style,
		maxRounds:  cfg.DefaultMaxRounds,
		jsonMode:   cfg.JSONMode,
		log:        cfg.Logger,
		now:        cfg.Now,
		newID:      cfg.NewID,
		transcript: cfg.TranscriptPath,
	}, nil
}

// CreateRequest describes a new session.
type CreateRequest struct {
	Mode      game.Mode
	LLMRef    string
	SetupID   string
	MaxRounds int
}

// CreateSession creates and stores a session at its first proposal.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (*game.Session, error) {
	if req.Mode == "" {
		req.Mode = game.ModeClassic
	}
	if req.MaxRounds == 0 {
		req.MaxRounds = s.maxRounds
	}
	if req.LLMRef == "" {
		return nil, errors.New("llm reference is required")
	}

	setup, err := s.setup(ctx, req.SetupID)
	if err != nil {
		return nil, err
	}
	desc, err := s.catalog.Describe(setup)
	if err != nil {
		return nil, fmt.Errorf("failed to describe setup %s: %w", setup.ID, err)
	}
	prompts, err := s.catalog.Prompts(string(req.Mode), s.style)
	if err != nil {
		return nil, err
	}

	sess, err := game.New(game.NewParams{
		ID:           s.newID(),
		Mode:         req.Mode,
		LLMRef:       req.LLMRef,
		Setup:        setup,
		MaxRounds:    req.MaxRounds,
		Descriptions: desc,
		Prompts:      prompts,
		Now:          s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	s.log.Info("session created", "sessionID", sess.ID, "setup", setup.ID, "mode", sess.Mode, "llm", sess.LLMRef)
	return sess, nil
}

// setup prefers the seeded copy and falls back to the catalog.
func (s *Service) setup(ctx context.Context, id string) (catalog.Setup, error) {
	if id == "" {
		return catalog.Setup{}, errors.New("setup id is required")
	}
	setup, err := s.store.GetSetup(ctx, id)
	if err == nil {
		return setup, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return catalog.Setup{}, err
	}
	if setup, ok := s.catalog.Setup(id); ok {
		return setup, nil
	}
	return catalog.Setup{}, fmt.Errorf("setup %q: %w", id, store.ErrNotFound)
}

// PlayRequest controls one PlayTurn call.
type PlayRequest struct {
	// TurnNum, when non-zero, discards that turn and everything after it
	// and plays it again.
	TurnNum         int
	ReasoningEffort string
}

// PlayTurn plays the session's next turn and persists it. Nothing is
// persisted when the turn fails.
func (s *Service) PlayTurn(ctx context.Context, id string, req PlayRequest) (*game.TurnRecord, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.NextStage == game.StageEnd && req.TurnNum == 0 {
		last, ok := sess.LatestRecord()
		if !ok {
			return nil, fmt.Errorf("session %s ended without any turn", id)
		}
		return &last, nil
	}

	p, err := s.providers(sess.LLMRef)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider %q: %w", sess.LLMRef, err)
	}

	rec, err := s.engine.PlayTurn(ctx, sess, p, engine.PlayOptions{
		TurnNum:         req.TurnNum,
		ReasoningEffort: req.ReasoningEffort,
		JSONMode:        s.jsonMode,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if sess.GameOver {
		s.exportTranscript(sess)
	}
	return rec, nil
}

// Run plays turns until the game ends or maxTurns turns were played, and
// returns the last record. A non-positive maxTurns means no limit.
func (s *Service) Run(ctx context.Context, id string, reasoningEffort string, maxTurns int) (*game.TurnRecord, error) {
	var last *game.TurnRecord
	for n := 0; maxTurns <= 0 || n < maxTurns; n++ {
		sess, err := s.store.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess.NextStage == game.StageEnd {
			break
		}
		last, err = s.PlayTurn(ctx, id, PlayRequest{ReasoningEffort: reasoningEffort})
		if err != nil {
			return nil, err
		}
	}
	if last == nil {
		sess, err := s.store.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec, ok := sess.LatestRecord(); ok {
			last = &rec
		}
	}
	return last, nil
}

// UpdateSession applies an optional edit of a recorded turn and persists
// the session.
func (s *Service) UpdateSession(ctx context.Context, id string, rec *game.TurnRecord) error {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := s.engine.Editor().Patch(sess, *rec); err != nil {
			return err
		}
	}
	sess.UpdatedAt = s.now()
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.log.Info("session updated", "sessionID", id, "patched", rec != nil)
	return nil
}

// CopySession stores a copy of a session under a new id, optionally played
// by a different LLM and with one turn edited, and returns the new id.
func (s *Service) CopySession(ctx context.Context, id, newLLMRef string, rec *game.TurnRecord) (string, error) {
	src, err := s.store.GetSession(ctx, id)
	if err != nil {
		return "", err
	}

	cp := src.Clone()
	cp.ID = s.newID()
	if newLLMRef != "" {
		cp.LLMRef = newLLMRef
	}
	now := s.now()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	if rec != nil {
		if err := s.engine.Editor().Patch(cp, *rec); err != nil {
			return "", err
		}
	}
	if err := s.store.CreateSession(ctx, cp); err != nil {
		return "", fmt.Errorf("failed to store copy: %w", err)
	}
	s.log.Info("session copied", "sessionID", cp.ID, "from", id, "llm", cp.LLMRef)
	return cp.ID, nil
}

// GetSession returns a stored session.
func (s *Service) GetSession(ctx context.Context, id string) (*game.Session, error) {
	return s.store.GetSession(ctx, id)
}

// DeleteSession removes a stored session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.log.Info("session deleted", "sessionID", id)
	return nil
}

// ListSessions summarizes stored sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, f store.SessionFilter) ([]store.SessionSummary, error) {
	return s.store.ListSessions(ctx, f)
}

// TurnHistory returns the recorded turns of a session.
func (s *Service) TurnHistory(ctx context.Context, id string) ([]game.TurnRecord, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.History, nil
}

// ListSetups returns the seeded setups.
func (s *Service) ListSetups(ctx context.Context) ([]catalog.Setup, error) {
	return s.store.ListSetups(ctx)
}

// SeedSetups seeds the setups of every registered game.
func (s *Service) SeedSetups(ctx context.Context) error {
	return s.games.SeedAll(ctx, s.store, s.log)
}

// Games lists the registered games.
func (s *Service) Games() []registry.GameInfo {
	return s.games.Infos()
}

// ExportTranscript writes the session's conversation as plain text and
// returns the file path.
func (s *Service) ExportTranscript(ctx context.Context, id string) (string, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return "", err
	}
	return s.writeTranscript(sess)
}

func (s *Service) exportTranscript(sess *game.Session) {
	path, err := s.writeTranscript(sess)
	if err != nil {
		s.log.Warn("failed to export transcript", "sessionID", sess.ID, "error", err)
		return
	}
	if path != "" {
		s.log.Info("transcript exported", "sessionID", sess.ID, "path", path)
	}
}

func (s *Service) writeTranscript(sess *game.Session) (string, error) {
	path, err := s.transcript(sess.ID)
	if err != nil || path == "" {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(llm.FormatTranscript(sess.Messages)), 0644); err != nil {
		return "", err
	}
	return path, nil
}
