package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/game"
	"github.com/zhubert/turnbench-core/llm"
	"github.com/zhubert/turnbench-core/parser"
	"github.com/zhubert/turnbench-core/verifier"
)

// DeferralMessage closes the question stage once the round's questions are
// used up or skipped.
const DeferralMessage = "I will decide whether to proceed to the next round during the Deduce Stage."

func openingPrompt(t *Turn, fallback string) string {
	if t.Prompt != "" {
		return t.Prompt
	}
	return fallback
}

type proposalExecutor struct {
	e *Engine
}

func (x *proposalExecutor) Execute(ctx context.Context, t *Turn) (Outcome, error) {
	s := t.Session
	prompt := openingPrompt(t, s.Prompts.Proposal)
	s.AddTurnMessage(llm.RoleUser, prompt)

	ex, err := x.e.converse(ctx, t, game.StageProposal, parser.ExtractProposal, func(error) string {
		return s.Prompts.NotValidProposalFormat
	})
	if err != nil {
		return Outcome{}, err
	}
	t.Log.Debug("proposal accepted", "guess_code", ex.result.Choice)

	return Outcome{
		Record: game.TurnRecord{
			RoundNum:       s.Stats.TotalRounds + 1,
			Stage:          game.StageProposal,
			Prompt:         prompt,
			Reasoning:      ex.result.Reasoning,
			ModelReasoning: ex.completion.ModelReasoning,
			GuessCode:      ex.result.Choice,
		},
		ResponseOffset: ex.offset,
	}, nil
}

type questionExecutor struct {
	e *Engine
}

func (x *questionExecutor) prompt(s *game.Session, pos int) (string, error) {
	if pos > game.MaxQuestionsPerRound {
		return "", fmt.Errorf("unexpected question %d in round %d", pos, s.Stats.TotalRounds+1)
	}
	if pos == 1 {
		return catalog.Render(s.Prompts.FirstQuestion, map[string]string{
			"verifier_descriptions": s.VerifierDescriptions,
		}), nil
	}
	last, _ := s.LatestRecord()
	return catalog.Render(s.Prompts.FollowingQuestion, map[string]string{
		"verifier_num":    last.VerifierChoice,
		"verifier_result": last.VerifierResult,
	}), nil
}

// accept parses a question reply and checks the index against the verifier count.
func (x *questionExecutor) accept(s *game.Session) acceptFunc {
	return func(content string) (parser.Result, error) {
		res, err := parser.ExtractQuestion(content)
		if err != nil || res.Choice == parser.Skip {
			return res, err
		}
		idx, err := strconv.Atoi(res.Choice)
		if err != nil {
			return res, &parser.FormatError{Stage: string(game.StageQuestion), Reason: err.Error()}
		}
		if idx < 0 || idx >= s.NumVerifiers() {
			return res, &game.NotValidError{
				Stage:  game.StageQuestion,
				Value:  res.Choice,
				Reason: fmt.Sprintf("there are %d verifiers", s.NumVerifiers()),
			}
		}
		return res, nil
	}
}

func (x *questionExecutor) correct(s *game.Session) correctFunc {
	return func(err error) string {
		var nv *game.NotValidError
		if errors.As(err, &nv) {
			return catalog.Render(s.Prompts.NotValidVerifierChoice, map[string]string{"verifier_num": nv.Value})
		}
		return s.Prompts.NotValidQuestionFormat
	}
}

func (x *questionExecutor) Execute(ctx context.Context, t *Turn) (Outcome, error) {
	s := t.Session
	pos := s.QuestionPosition()
	fallback, err := x.prompt(s, pos)
	if err != nil {
		return Outcome{}, err
	}
	prompt := openingPrompt(t, fallback)
	s.AddTurnMessage(llm.RoleUser, prompt)

	ex, err := x.e.converse(ctx, t, game.StageQuestion, x.accept(s), x.correct(s))
	if err != nil {
		return Outcome{}, err
	}

	choice := ex.result.Choice
	var result string
	if choice != parser.Skip {
		result, err = x.evaluate(s, choice)
		if err != nil {
			return Outcome{}, err
		}
	}
	t.Log.Debug("question accepted", "position", pos, "verifier_choice", choice, "verifier_result", result)

	if pos == game.MaxQuestionsPerRound || choice == parser.Skip {
		if choice != parser.Skip {
			s.AddTurnMessage(llm.RoleAssistant, catalog.Render(s.Prompts.AfterLastQuestion, map[string]string{
				"verifier_num":    choice,
				"verifier_result": result,
			}))
		}
		s.AddTurnMessage(llm.RoleAssistant, DeferralMessage)
	}

	return Outcome{
		Record: game.TurnRecord{
			RoundNum:       s.Stats.TotalRounds + 1,
			Stage:          game.StageQuestion,
			Prompt:         prompt,
			Reasoning:      ex.result.Reasoning,
			ModelReasoning: ex.completion.ModelReasoning,
			VerifierChoice: choice,
			VerifierResult: result,
		},
		ResponseOffset: ex.offset,
	}, nil
}

// evaluate checks this round's guess against the verifier at index choice.
func (x *questionExecutor) evaluate(s *game.Session, choice string) (string, error) {
	idx, err := strconv.Atoi(choice)
	if err != nil {
		return "", err
	}
	guess, ok := s.LatestGuessCode()
	if !ok {
		return "", errors.New("question asked before any proposal")
	}
	passed, err := verifier.Evaluate(x.e.verifiers, s.GameInfo.Active(s.Mode)[idx], guess)
	if err != nil {
		return "", err
	}
	if passed {
		return game.ResultPass, nil
	}
	return game.ResultFail, nil
}

type deduceExecutor struct {
	e *Engine
}

func (x *deduceExecutor) Execute(ctx context.Context, t *Turn) (Outcome, error) {
	s := t.Session
	prompt := openingPrompt(t, s.Prompts.Deduce)
	s.AddTurnMessage(llm.RoleUser, prompt)

	ex, err := x.e.converse(ctx, t, game.StageDeduce, parser.ExtractDeduce, func(error) string {
		return s.Prompts.NotValidDeduceFormat
	})
	if err != nil {
		return Outcome{}, err
	}

	code := ex.result.Choice
	skip := code == parser.Skip
	if !skip {
		passed, err := verifier.CountPassed(x.e.verifiers, s.GameInfo.Active(s.Mode), code)
		if err != nil {
			return Outcome{}, err
		}
		correct := code == s.GameInfo.Answer
		s.SubmittedCode = code
		s.NumVerifierPassed = passed
		s.AddTurnMessage(llm.RoleUser, catalog.Render(s.Prompts.DeduceResult, map[string]string{
			"submitted_code": code,
			"answer":         s.GameInfo.Answer,
			"is_correct":     strconv.FormatBool(correct),
		}))
		t.Log.Debug("code submitted", "code", code, "correct", correct, "verifiers_passed", passed)
	}

	s.Stats.TotalRounds++
	s.UpdateStatus()

	rec := game.TurnRecord{
		RoundNum:       s.Stats.TotalRounds,
		Stage:          game.StageDeduce,
		Prompt:         prompt,
		Reasoning:      ex.result.Reasoning,
		ModelReasoning: ex.completion.ModelReasoning,
		DeduceSkip:     skip,
		GameOver:       s.GameOver,
		GameOverReason: s.GameOverReason,
		GameSuccess:    s.GameSuccess,
	}
	if !skip {
		rec.SubmittedCode = code
	}
	return Outcome{Record: rec, ResponseOffset: ex.offset}, nil
}
