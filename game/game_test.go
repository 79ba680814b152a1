package game

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/llm"
	"github.com/zhubert/turnbench-core/parser"
	"github.com/zhubert/turnbench-core/verifier"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testPrompts = catalog.PromptSet{
	System:            "Rules.\n{game_setup}",
	Proposal:          "Propose a code.",
	FirstQuestion:     "Pick a verifier:\n{verifier_descriptions}",
	FollowingQuestion: "Verifier {verifier_num} answered {verifier_result}. Pick another.",
	AfterLastQuestion: "Verifier {verifier_num} answered {verifier_result}. No questions left.",
	Deduce:            "Submit or skip.",
	DeduceResult:      "Submitted {submitted_code}, answer {answer}, correct {is_correct}.",
}

var testSetup = catalog.Setup{
	ID:         "t1",
	Answer:     "241",
	Difficulty: "easy",
	Classic:    []verifier.Assignment{{VerifierID: 1, CriterionID: 1}, {VerifierID: 2, CriterionID: 1}},
	Nightmare:  []verifier.Assignment{{VerifierID: 2, CriterionID: 1}, {VerifierID: 1, CriterionID: 1}},
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(NewParams{
		ID:           "sess-1",
		Mode:         ModeClassic,
		LLMRef:       "mock",
		Setup:        testSetup,
		MaxRounds:    3,
		Descriptions: "Verifier <0>: first\nVerifier <1>: second",
		Prompts:      testPrompts,
		Now:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// playTurn pushes a prompt and a response through the scratch buffer and
// commits rec with the response as the authoritative message. extra messages
// are appended after the response.
func playTurn(t *testing.T, e *Editor, s *Session, rec TurnRecord, response string, extra ...llm.Message) {
	t.Helper()
	rec.TurnNum = len(s.History) + 1
	s.AddTurnMessage(llm.RoleUser, rec.Prompt)
	s.AddTurnMessage(llm.RoleAssistant, response)
	s.TurnMessages = append(s.TurnMessages, extra...)
	if err := e.Append(s, rec, 1); err != nil {
		t.Fatalf("Append turn %d: %v", rec.TurnNum, err)
	}
	s.AdvanceStage()
}

func proposalRecord(code, reasoning string) TurnRecord {
	return TurnRecord{Stage: StageProposal, RoundNum: 1, Prompt: testPrompts.Proposal, Reasoning: reasoning, GuessCode: code}
}

func proposalResponse(code, reasoning string) string {
	return "<REASONING>: " + reasoning + "\n<CHOICE>: " + parser.FormatCodeChoice(code)
}

func questionResponse(choice, reasoning string) string {
	return "<REASONING>: " + reasoning + "\n<CHOICE>: " + choice
}
