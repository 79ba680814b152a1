package game

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/parser"
)

// Editor appends, patches and rewinds turn history. Every operation keeps
// History, TurnMessageIndexes and TurnResponseIndexes the same length and
// leaves the session untouched when it returns an error.
type Editor struct {
	log *slog.Logger
}

// NewEditor creates an Editor that logs splice fallbacks to log.
func NewEditor(log *slog.Logger) *Editor {
	if log == nil {
		log = slog.Default()
	}
	return &Editor{log: log}
}

// Record appends rec when it is the next turn and patches it otherwise.
func (e *Editor) Record(s *Session, rec TurnRecord, responseOffset int) error {
	if rec.TurnNum >= 1 && rec.TurnNum <= len(s.History) {
		return e.Patch(s, rec)
	}
	return e.Append(s, rec, responseOffset)
}

// Append commits the turn in flight: the scratch messages are folded into the
// transcript and rec is pushed. responseOffset is the position of the
// authoritative model response within the scratch messages.
func (e *Editor) Append(s *Session, rec TurnRecord, responseOffset int) error {
	if rec.TurnNum != len(s.History)+1 {
		return &OutOfRangeError{TurnNum: rec.TurnNum, HistoryLen: len(s.History)}
	}
	if responseOffset < 0 || responseOffset >= len(s.TurnMessages) {
		return fmt.Errorf("response offset %d outside %d scratch messages", responseOffset, len(s.TurnMessages))
	}

	start := len(s.Messages)
	s.TurnMessageIndexes = append(s.TurnMessageIndexes, start)
	s.Messages = append(s.Messages, s.TurnMessages...)
	s.TurnMessages = nil
	s.TurnResponseIndexes = append(s.TurnResponseIndexes, start+responseOffset)
	s.History = append(s.History, rec)
	return nil
}

// Patch overwrites an existing record and edits the transcript so it reads
// as if the patched values had been produced originally. Fields whose value
// is unchanged leave the transcript untouched.
func (e *Editor) Patch(s *Session, rec TurnRecord) error {
	n := rec.TurnNum
	if n < 1 || n > len(s.History) {
		return &OutOfRangeError{TurnNum: n, HistoryLen: len(s.History)}
	}
	old := s.History[n-1]
	if old.Stage != rec.Stage {
		return &NotValidError{Stage: rec.Stage, Value: string(rec.Stage), Reason: fmt.Sprintf("turn %d is a %s turn", n, old.Stage)}
	}

	msgIdx := s.TurnMessageIndexes[n-1]
	respIdx := s.TurnResponseIndexes[n-1]
	if msgIdx >= len(s.Messages) || respIdx >= len(s.Messages) {
		return fmt.Errorf("turn %d indexes (%d, %d) exceed transcript of %d messages", n, msgIdx, respIdx, len(s.Messages))
	}
	log := e.log.With("sessionID", s.ID, "turn", n)

	if old.Prompt != rec.Prompt {
		s.Messages[msgIdx].Content = rec.Prompt
	}

	resp := s.Messages[respIdx].Content
	if old.Reasoning != rec.Reasoning {
		resp = e.spliceReasoning(log, resp, old.Reasoning, rec.Reasoning)
	}

	switch rec.Stage {
	case StageProposal:
		if old.GuessCode != rec.GuessCode {
			resp = e.spliceChoice(log, resp, parser.FormatCodeChoice(rec.GuessCode))
		}
	case StageQuestion:
		if old.VerifierChoice != rec.VerifierChoice {
			resp = e.spliceChoice(log, resp, rec.VerifierChoice)
		}
		if old.VerifierChoice != rec.VerifierChoice || old.VerifierResult != rec.VerifierResult {
			e.patchFollowingResult(log, s, n, respIdx, old, rec)
		}
	}
	s.Messages[respIdx].Content = resp

	s.History[n-1] = rec
	return nil
}

// spliceReasoning replaces the located reasoning span. If the response no
// longer parses, the first occurrence of the old text is replaced instead.
func (e *Editor) spliceReasoning(log *slog.Logger, resp, oldText, newText string) string {
	loc, err := parser.Locate(resp)
	if err == nil && loc.Reasoning.Slice(resp) == oldText {
		return resp[:loc.Reasoning.Start] + newText + resp[loc.Reasoning.End:]
	}
	if oldText == "" || !strings.Contains(resp, oldText) {
		log.Warn("reasoning not found in response, transcript left unchanged")
		return resp
	}
	log.Warn("reasoning span not located, replacing first occurrence")
	return strings.Replace(resp, oldText, newText, 1)
}

// spliceChoice rewrites everything from the choice tag to the end of the
// response, keeping the tag as the model wrote it.
func (e *Editor) spliceChoice(log *slog.Logger, resp, choice string) string {
	loc, err := parser.Locate(resp)
	if err != nil {
		log.Warn("choice tag not located, transcript left unchanged", "error", err)
		return resp
	}
	return resp[:loc.ChoiceTag.End] + ": " + choice
}

// patchFollowingResult updates the message right after a question response,
// which reports the verifier result: either the next question prompt or the
// end-of-round summary.
func (e *Editor) patchFollowingResult(log *slog.Logger, s *Session, n, respIdx int, old, rec TurnRecord) {
	next := respIdx + 1
	if next >= len(s.Messages) {
		return
	}

	oldVars := map[string]string{"verifier_num": old.VerifierChoice, "verifier_result": old.VerifierResult}
	newVars := map[string]string{"verifier_num": rec.VerifierChoice, "verifier_result": rec.VerifierResult}
	content := s.Messages[next].Content

	for _, tmpl := range []string{s.Prompts.FollowingQuestion, s.Prompts.AfterLastQuestion} {
		if tmpl == "" || content != catalog.Render(tmpl, oldVars) {
			continue
		}
		s.Messages[next].Content = catalog.Render(tmpl, newVars)
		// keep the next question's record in step with its prompt
		if n < len(s.History) && s.TurnMessageIndexes[n] == next && s.History[n].Stage == StageQuestion {
			s.History[n].Prompt = s.Messages[next].Content
		}
		return
	}

	if old.VerifierResult == "" || old.VerifierResult == rec.VerifierResult || !strings.Contains(content, old.VerifierResult) {
		return
	}
	log.Warn("result message does not match a template, replacing first occurrence")
	s.Messages[next].Content = strings.Replace(content, old.VerifierResult, rec.VerifierResult, 1)
	if n < len(s.History) && s.TurnMessageIndexes[n] == next {
		s.History[n].Prompt = s.Messages[next].Content
	}
}

// Rewind truncates history to just before turn n and returns the removed
// turn's record. NextStage becomes that turn's stage so the caller can
// replay it with the recorded prompt.
func (e *Editor) Rewind(s *Session, n int) (TurnRecord, error) {
	if n < 1 || n > len(s.History) {
		return TurnRecord{}, &OutOfRangeError{TurnNum: n, HistoryLen: len(s.History)}
	}
	removed := s.History[n-1]
	msgIdx := s.TurnMessageIndexes[n-1]
	if msgIdx > len(s.Messages) {
		return TurnRecord{}, fmt.Errorf("turn %d message index %d exceeds transcript of %d messages", n, msgIdx, len(s.Messages))
	}

	s.History = s.History[:n-1]
	s.TurnMessageIndexes = s.TurnMessageIndexes[:n-1]
	s.TurnResponseIndexes = s.TurnResponseIndexes[:n-1]
	s.Messages = s.Messages[:msgIdx]

	s.Stats.TotalTurns = n - 1
	s.Stats.TotalRounds = s.CompletedRounds()
	s.SubmittedCode = ""
	s.NumVerifierPassed = 0
	s.GameOver = false
	s.GameOverReason = ""
	s.GameSuccess = false
	s.ClearTurn()
	s.NextStage = removed.Stage

	e.log.Debug("rewound session", "sessionID", s.ID, "turn", n, "stage", removed.Stage)
	return removed, nil
}
