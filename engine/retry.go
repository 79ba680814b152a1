package engine

import (
	"context"
	"errors"

	"github.com/zhubert/turnbench-core/game"
	"github.com/zhubert/turnbench-core/llm"
	"github.com/zhubert/turnbench-core/parser"
)

// exchange is one accepted provider reply.
type exchange struct {
	result     parser.Result
	completion *llm.Completion
	offset     int
}

// acceptFunc parses a reply. It returns a parser.FormatError or a
// game.NotValidError to ask for another attempt.
type acceptFunc func(content string) (parser.Result, error)

// correctFunc builds the corrective prompt sent after a rejected reply.
type correctFunc func(err error) string

// converse calls the provider until a reply is accepted. Format and validity
// failures are counted separately and each may be retried up to its limit.
// Any other error, including provider errors, is returned as is.
func (e *Engine) converse(ctx context.Context, t *Turn, stage game.Stage, accept acceptFunc, correct correctFunc) (exchange, error) {
	s := t.Session
	var formatRetries, validityRetries int

	for {
		c, err := t.Provider.Complete(ctx, s.Context(), t.Options)
		if err != nil {
			return exchange{}, err
		}
		s.AddTurnMessage(llm.RoleAssistant, c.Content)
		s.AddCompletion(c)
		e.recorder.ProviderCall(string(stage), c.TimeUsed)

		res, err := accept(c.Content)
		if err == nil {
			return exchange{result: res, completion: c, offset: len(s.TurnMessages) - 1}, nil
		}

		var kind string
		switch {
		case errors.Is(err, parser.ErrFormat):
			if formatRetries >= e.limits.MaxFormatRetries {
				return exchange{}, &RetryError{Stage: stage, Kind: KindFormat, Attempts: formatRetries + validityRetries + 1, Err: err}
			}
			formatRetries++
			s.Stats.FormatErrors++
			kind = KindFormat
		case errors.Is(err, game.ErrNotValid):
			if validityRetries >= e.limits.MaxValidityRetries {
				return exchange{}, &RetryError{Stage: stage, Kind: KindValidity, Attempts: formatRetries + validityRetries + 1, Err: err}
			}
			validityRetries++
			s.Stats.NotValidErrors++
			kind = KindValidity
		default:
			return exchange{}, err
		}

		t.Log.Debug("response rejected, retrying", "kind", kind, "format_retries", formatRetries, "validity_retries", validityRetries, "error", err)
		e.recorder.Retry(string(stage), kind)
		s.AddTurnMessage(llm.RoleUser, correct(err))
	}
}
