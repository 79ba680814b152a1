package game

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/llm"
)

// playRound plays a proposal and two questions, the second prompt carrying
// the first question's result.
func playRound(t *testing.T, e *Editor, s *Session) {
	t.Helper()
	playTurn(t, e, s, proposalRecord("123", "Start wide."), "<REASONING>: Start wide.\n<choice>: BLUE=1 YELLOW=2 PURPLE=3")
	q1 := TurnRecord{Stage: StageQuestion, RoundNum: 1, Prompt: "Pick a verifier:\n" + s.VerifierDescriptions,
		Reasoning: "Check blue.", VerifierChoice: "0", VerifierResult: ResultPass}
	playTurn(t, e, s, q1, questionResponse("0", "Check blue."))

	next := catalog.Render(testPrompts.FollowingQuestion, map[string]string{"verifier_num": "0", "verifier_result": ResultPass})
	q2 := TurnRecord{Stage: StageQuestion, RoundNum: 1, Prompt: next, Reasoning: "Check yellow.", VerifierChoice: "1", VerifierResult: ResultFail}
	playTurn(t, e, s, q2, questionResponse("1", "Check yellow."))
}

func TestAppend_RecordsOffsets(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)

	if diff := cmp.Diff([]int{1, 3, 5}, s.TurnMessageIndexes); diff != "" {
		t.Errorf("TurnMessageIndexes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 4, 6}, s.TurnResponseIndexes); diff != "" {
		t.Errorf("TurnResponseIndexes mismatch (-want +got):\n%s", diff)
	}
	if len(s.TurnMessages) != 0 {
		t.Errorf("scratch not cleared: %d messages", len(s.TurnMessages))
	}
	if err := s.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency: %v", err)
	}
}

func TestAppend_ResponseOffsetAfterExtraMessages(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)

	s.AddTurnMessage(llm.RoleUser, "Propose a code.")
	s.AddTurnMessage(llm.RoleAssistant, "garbage")
	s.AddTurnMessage(llm.RoleUser, "Fix your format.")
	s.AddTurnMessage(llm.RoleAssistant, proposalResponse("123", "ok"))
	rec := proposalRecord("123", "ok")
	rec.TurnNum = 1
	if err := e.Append(s, rec, 3); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if s.TurnResponseIndexes[0] != 4 {
		t.Errorf("response index = %d, want 4", s.TurnResponseIndexes[0])
	}
	if s.Messages[4].Content != proposalResponse("123", "ok") {
		t.Errorf("indexed message is not the accepted response: %q", s.Messages[4].Content)
	}
}

func TestAppend_RejectsWrongTurnNumber(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	s.AddTurnMessage(llm.RoleUser, "Propose a code.")
	s.AddTurnMessage(llm.RoleAssistant, proposalResponse("123", "ok"))
	before := s.Clone()

	rec := proposalRecord("123", "ok")
	rec.TurnNum = 3
	err := e.Append(s, rec, 1)
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if diff := cmp.Diff(before, s); diff != "" {
		t.Errorf("session mutated on error (-before +after):\n%s", diff)
	}

	rec.TurnNum = 1
	if err := e.Append(s, rec, 2); err == nil {
		t.Error("expected error for response offset past scratch")
	}
}

func TestPatch_IdenticalRecordLeavesTranscript(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)
	before := s.Clone()

	for _, rec := range before.History {
		if err := e.Patch(s, rec); err != nil {
			t.Fatalf("Patch turn %d: %v", rec.TurnNum, err)
		}
	}
	if diff := cmp.Diff(before.Messages, s.Messages); diff != "" {
		t.Errorf("transcript changed (-before +after):\n%s", diff)
	}
}

func TestPatch_ProposalSplicesReasoningAndCode(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)

	rec := s.History[0]
	rec.Reasoning = "Narrow it down."
	rec.GuessCode = "451"
	if err := e.Patch(s, rec); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	want := "<REASONING>: Narrow it down.\n<choice>: BLUE=4 YELLOW=5 PURPLE=1"
	if got := s.Messages[s.TurnResponseIndexes[0]].Content; got != want {
		t.Errorf("response = %q, want %q", got, want)
	}
	if s.History[0].GuessCode != "451" {
		t.Errorf("record not overwritten: %+v", s.History[0])
	}

	// applying the same patch again is a no-op
	snapshot := append([]llm.Message(nil), s.Messages...)
	if err := e.Patch(s, rec); err != nil {
		t.Fatalf("second Patch: %v", err)
	}
	if diff := cmp.Diff(snapshot, s.Messages); diff != "" {
		t.Errorf("second patch changed transcript:\n%s", diff)
	}
}

func TestPatch_PromptOverwrite(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)

	rec := s.History[0]
	rec.Prompt = "Propose something bold."
	if err := e.Patch(s, rec); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if s.Messages[s.TurnMessageIndexes[0]].Content != "Propose something bold." {
		t.Errorf("prompt message = %q", s.Messages[s.TurnMessageIndexes[0]].Content)
	}
}

func TestPatch_QuestionUpdatesFollowingPrompt(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)

	rec := s.History[1]
	rec.VerifierChoice = "1"
	rec.VerifierResult = ResultFail
	if err := e.Patch(s, rec); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	if got := s.Messages[s.TurnResponseIndexes[1]].Content; got != "<REASONING>: Check blue.\n<CHOICE>: 1" {
		t.Errorf("question response = %q", got)
	}
	want := "Verifier 1 answered FAIL. Pick another."
	if got := s.Messages[s.TurnMessageIndexes[2]].Content; got != want {
		t.Errorf("following prompt = %q, want %q", got, want)
	}
	if s.History[2].Prompt != want {
		t.Errorf("next record prompt = %q, want %q", s.History[2].Prompt, want)
	}
	if err := s.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency: %v", err)
	}
}

func TestPatch_QuestionUpdatesAfterLastSummary(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)

	summary := catalog.Render(testPrompts.AfterLastQuestion, map[string]string{"verifier_num": "0", "verifier_result": ResultPass})
	q3 := TurnRecord{Stage: StageQuestion, RoundNum: 1, Prompt: "third", Reasoning: "Last one.", VerifierChoice: "0", VerifierResult: ResultPass}
	playTurn(t, e, s, q3, questionResponse("0", "Last one."),
		llm.Message{Role: llm.RoleAssistant, Content: summary},
		llm.Message{Role: llm.RoleAssistant, Content: "I will decide whether to proceed to the next round during the Deduce Stage."})

	rec := s.History[3]
	rec.VerifierResult = ResultFail
	if err := e.Patch(s, rec); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got := s.Messages[s.TurnResponseIndexes[3]+1].Content; got != "Verifier 0 answered FAIL. No questions left." {
		t.Errorf("summary = %q", got)
	}
}

func TestPatch_Errors(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)
	before := s.Clone()

	rec := s.History[0]
	rec.TurnNum = 4
	if err := e.Patch(s, rec); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("turn 4: expected ErrOutOfRange, got %v", err)
	}
	rec.TurnNum = 0
	if err := e.Patch(s, rec); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("turn 0: expected ErrOutOfRange, got %v", err)
	}

	wrongStage := s.History[1]
	wrongStage.Stage = StageDeduce
	if err := e.Patch(s, wrongStage); !errors.Is(err, ErrNotValid) {
		t.Errorf("stage mismatch: expected ErrNotValid, got %v", err)
	}

	if diff := cmp.Diff(before, s); diff != "" {
		t.Errorf("session mutated on error (-before +after):\n%s", diff)
	}
}

func TestRecord_Dispatches(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)

	rec := s.History[0]
	rec.Reasoning = "Patched."
	if err := e.Record(s, rec, 1); err != nil {
		t.Fatalf("Record patch: %v", err)
	}
	if len(s.History) != 3 || s.History[0].Reasoning != "Patched." {
		t.Errorf("Record should patch turn 1, history = %+v", s.History)
	}

	s.AddTurnMessage(llm.RoleUser, "Submit or skip.")
	s.AddTurnMessage(llm.RoleAssistant, questionResponse("SKIP", "Not yet."))
	deduce := TurnRecord{TurnNum: 4, Stage: StageDeduce, Prompt: "Submit or skip.", Reasoning: "Not yet.", DeduceSkip: true}
	if err := e.Record(s, deduce, 1); err != nil {
		t.Fatalf("Record append: %v", err)
	}
	if len(s.History) != 4 {
		t.Errorf("Record should append turn 4, history len = %d", len(s.History))
	}
}

func TestRewind_TruncatesToTurn(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)
	playTurn(t, e, s, TurnRecord{Stage: StageDeduce, Prompt: "d", Reasoning: "wait", DeduceSkip: true}, questionResponse("SKIP", "wait"))
	s.Stats.TotalTurns = 4
	s.Stats.TotalRounds = 1
	playTurn(t, e, s, proposalRecord("451", "again"), proposalResponse("451", "again"))
	s.Stats.TotalTurns = 5

	cutAt := s.TurnMessageIndexes[1]
	removed, err := e.Rewind(s, 2)
	if err != nil {
		t.Fatalf("Rewind: %v", err)
	}

	if removed.TurnNum != 2 || removed.Stage != StageQuestion {
		t.Errorf("removed = %+v", removed)
	}
	if len(s.History) != 1 || len(s.TurnMessageIndexes) != 1 || len(s.TurnResponseIndexes) != 1 {
		t.Errorf("slices not truncated: %d/%d/%d", len(s.History), len(s.TurnMessageIndexes), len(s.TurnResponseIndexes))
	}
	if len(s.Messages) != cutAt {
		t.Errorf("messages = %d, want %d", len(s.Messages), cutAt)
	}
	if s.Stats.TotalTurns != 1 || s.Stats.TotalRounds != 0 {
		t.Errorf("stats = %+v", s.Stats)
	}
	if s.NextStage != StageQuestion {
		t.Errorf("NextStage = %s, want question", s.NextStage)
	}
	if err := s.CheckConsistency(); err != nil {
		t.Errorf("CheckConsistency: %v", err)
	}
}

func TestRewind_ResetsGameOver(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)
	s.NextStage = StageDeduce
	playTurn(t, e, s, TurnRecord{Stage: StageDeduce, Prompt: "d", Reasoning: "sure", SubmittedCode: "241", GameOver: true}, questionResponse("BLUE=2 YELLOW=4 PURPLE=1", "sure"))
	s.SubmittedCode = "241"
	s.NumVerifierPassed = 2
	s.GameOver, s.GameOverReason, s.GameSuccess = true, ReasonSubmitted, true

	if _, err := e.Rewind(s, 4); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if s.GameOver || s.GameOverReason != "" || s.GameSuccess || s.SubmittedCode != "" || s.NumVerifierPassed != 0 {
		t.Errorf("game-over fields not reset: %+v", s)
	}
	if s.NextStage != StageDeduce {
		t.Errorf("NextStage = %s, want deduce", s.NextStage)
	}
}

func TestRewind_OutOfRange(t *testing.T) {
	e := NewEditor(testLogger())
	s := newTestSession(t)
	playRound(t, e, s)
	before := s.Clone()

	for _, n := range []int{0, 4, -1} {
		if _, err := e.Rewind(s, n); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Rewind(%d): expected ErrOutOfRange, got %v", n, err)
		}
	}
	if diff := cmp.Diff(before, s); diff != "" {
		t.Errorf("session mutated on error (-before +after):\n%s", diff)
	}
}
