// Package engine plays turns of a deduction game: it dispatches on the
// session's next stage, drives the provider through the bounded retry loop
// and commits the resulting record through the history editor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhubert/turnbench-core/game"
	"github.com/zhubert/turnbench-core/llm"
	"github.com/zhubert/turnbench-core/verifier"
)

// Limits bound the extra provider calls a stage may spend on bad responses.
type Limits struct {
	MaxFormatRetries   int
	MaxValidityRetries int
}

// DefaultLimits allow three retries of each kind, four calls at most.
var DefaultLimits = Limits{MaxFormatRetries: 3, MaxValidityRetries: 3}

// Recorder receives turn events. The metrics package provides the
// Prometheus implementation.
type Recorder interface {
	TurnCompleted(stage string)
	Retry(stage, kind string)
	ProviderCall(stage string, seconds float64)
	Tokens(input, output int)
	GameFinished(reason string, success bool)
}

type nopRecorder struct{}

func (nopRecorder) TurnCompleted(string)         {}
func (nopRecorder) Retry(string, string)         {}
func (nopRecorder) ProviderCall(string, float64) {}
func (nopRecorder) Tokens(int, int)              {}
func (nopRecorder) GameFinished(string, bool)    {}

// Executor plays one stage of a turn. It leaves the accepted exchange in the
// session's scratch messages and returns the record to commit.
type Executor interface {
	Execute(ctx context.Context, t *Turn) (Outcome, error)
}

// Outcome is what an executor hands back for commit.
type Outcome struct {
	Record game.TurnRecord
	// ResponseOffset locates the accepted model response in the scratch messages.
	ResponseOffset int
}

// Turn is a turn in flight.
type Turn struct {
	Session  *game.Session
	Provider llm.Provider
	Options  llm.Options
	// Prompt replaces the stage's opening prompt when a turn is replayed.
	Prompt string
	Log    *slog.Logger
}

// Config configures an Engine.
type Config struct {
	Verifiers verifier.Source
	Limits    Limits
	Recorder  Recorder
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine is the turn orchestrator. It holds no per-session state; callers
// serialize turns of the same session.
type Engine struct {
	verifiers verifier.Source
	limits    Limits
	recorder  Recorder
	editor    *game.Editor
	log       *slog.Logger
	now       func() time.Time
	executors map[game.Stage]Executor
}

// New creates an engine with the proposal, question and deduce executors
// registered.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits
	}

	e := &Engine{
		verifiers: cfg.Verifiers,
		limits:    cfg.Limits,
		recorder:  cfg.Recorder,
		editor:    game.NewEditor(cfg.Logger.With("component", "history")),
		log:       cfg.Logger,
		now:       cfg.Now,
		executors: make(map[game.Stage]Executor),
	}
	e.Register(game.StageProposal, &proposalExecutor{e: e})
	e.Register(game.StageQuestion, &questionExecutor{e: e})
	e.Register(game.StageDeduce, &deduceExecutor{e: e})
	return e
}

// Register installs the executor for a stage, replacing any existing one.
func (e *Engine) Register(stage game.Stage, ex Executor) {
	e.executors[stage] = ex
}

// Editor returns the history editor the engine commits through.
func (e *Engine) Editor() *game.Editor {
	return e.editor
}

// PlayOptions control a single PlayTurn call.
type PlayOptions struct {
	// TurnNum, when non-zero, rewinds to just before that turn and replays it
	// with its recorded prompt.
	TurnNum         int
	ReasoningEffort string
	JSONMode        bool
}

// PlayTurn plays the session's next stage and returns the committed record.
// On error the session is restored to its state on entry.
func (e *Engine) PlayTurn(ctx context.Context, s *game.Session, p llm.Provider, opts PlayOptions) (*game.TurnRecord, error) {
	log := e.log.With("sessionID", s.ID)
	before := s.Clone()

	rec, err := e.playTurn(ctx, s, p, opts, log)
	if err != nil {
		*s = *before
		log.Error("turn failed", "stage", s.NextStage, "error", err)
		return nil, err
	}
	return rec, nil
}

func (e *Engine) playTurn(ctx context.Context, s *game.Session, p llm.Provider, opts PlayOptions, log *slog.Logger) (*game.TurnRecord, error) {
	var prompt string
	if opts.TurnNum != 0 {
		removed, err := e.editor.Rewind(s, opts.TurnNum)
		if err != nil {
			return nil, err
		}
		prompt = removed.Prompt
		log.Info("replaying turn", "turn", opts.TurnNum, "stage", removed.Stage)
	}

	if s.NextStage == game.StageEnd {
		log.Debug("game already ended")
		last, ok := s.LatestRecord()
		if !ok {
			return nil, errors.New("game ended without any recorded turn")
		}
		return &last, nil
	}

	ex, ok := e.executors[s.NextStage]
	if !ok {
		return nil, fmt.Errorf("invalid next stage %q", s.NextStage)
	}

	s.ClearTurn()
	t := &Turn{
		Session:  s,
		Provider: p,
		Options:  llm.Options{ReasoningEffort: opts.ReasoningEffort, JSONMode: opts.JSONMode},
		Prompt:   prompt,
		Log:      log.With("stage", s.NextStage),
	}
	out, err := ex.Execute(ctx, t)
	if err != nil {
		return nil, err
	}
	return e.commit(s, out)
}

// commit folds the turn in flight into the session.
func (e *Engine) commit(s *game.Session, out Outcome) (*game.TurnRecord, error) {
	rec := out.Record
	rec.TurnNum = len(s.History) + 1
	rec.TimeUsed = s.Turn.TimeUsed

	s.FoldTurnStats()
	s.Stats.TotalTurns = rec.TurnNum
	tokensIn, tokensOut := s.Turn.InputTokens, s.Turn.OutputTokens
	if err := e.editor.Append(s, rec, out.ResponseOffset); err != nil {
		return nil, err
	}
	s.ClearTurn()
	s.AdvanceStage()
	s.UpdatedAt = e.now()

	e.recorder.TurnCompleted(string(rec.Stage))
	e.recorder.Tokens(tokensIn, tokensOut)
	if rec.Stage == game.StageDeduce && rec.GameOver {
		e.recorder.GameFinished(rec.GameOverReason, rec.GameSuccess)
	}
	e.log.Debug("turn committed", "sessionID", s.ID, "turn", rec.TurnNum, "stage", rec.Stage, "next", s.NextStage)
	return &rec, nil
}
