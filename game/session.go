// Package game holds session state for one deduction game and the history
// editor that keeps the transcript and the per-turn index arrays in step.
package game

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/llm"
	"github.com/zhubert/turnbench-core/parser"
	"github.com/zhubert/turnbench-core/verifier"
)

// Stage names the next turn to play.
type Stage string

const (
	StageProposal Stage = "proposal"
	StageQuestion Stage = "question"
	StageDeduce   Stage = "deduce"
	StageEnd      Stage = "end"
)

// Mode selects which assignment list is evaluated.
type Mode string

const (
	ModeClassic   Mode = catalog.ModeClassic
	ModeNightmare Mode = catalog.ModeNightmare
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeClassic || m == ModeNightmare
}

// Game-over reasons and verifier results.
const (
	ReasonSubmitted  = "Submitted"
	ReasonOverRounds = "Over rounds"

	ResultPass = "PASS"
	ResultFail = "FAIL"

	// MaxQuestionsPerRound bounds the question sub-turns of a round.
	MaxQuestionsPerRound = 3
)

// GameInfo is the setup snapshot a session is created with. It never changes.
type GameInfo struct {
	SetupID              string                `json:"setup_id"`
	Answer               string                `json:"answer"`
	Difficulty           string                `json:"difficulty"`
	Assignments          []verifier.Assignment `json:"assignments"`
	NightmareAssignments []verifier.Assignment `json:"nightmare_assignments"`
}

// Active returns the assignments evaluated in mode.
func (g GameInfo) Active(mode Mode) []verifier.Assignment {
	if mode == ModeNightmare {
		return g.NightmareAssignments
	}
	return g.Assignments
}

// VerifierIDs returns the verifier id at each position.
func (g GameInfo) VerifierIDs(mode Mode) []int {
	ids := make([]int, 0, len(g.Active(mode)))
	for _, a := range g.Active(mode) {
		ids = append(ids, a.VerifierID)
	}
	return ids
}

// ActiveCriterionIDs returns the active criterion id at each position.
func (g GameInfo) ActiveCriterionIDs(mode Mode) []int {
	ids := make([]int, 0, len(g.Active(mode)))
	for _, a := range g.Active(mode) {
		ids = append(ids, a.CriterionID)
	}
	return ids
}

// TurnRecord is the result of one stage execution.
type TurnRecord struct {
	TurnNum        int     `json:"turn_num"`
	RoundNum       int     `json:"round_num"`
	Stage          Stage   `json:"turn_name"`
	Prompt         string  `json:"turn_prompt"`
	Reasoning      string  `json:"turn_reasoning"`
	ModelReasoning string  `json:"turn_model_level_reasoning,omitempty"`
	TimeUsed       float64 `json:"turn_time_used"`

	// proposal
	GuessCode string `json:"guess_code,omitempty"`

	// question
	VerifierChoice string `json:"verifier_choice,omitempty"`
	VerifierResult string `json:"verifier_result,omitempty"`

	// deduce
	DeduceSkip     bool   `json:"deduce_choice_skip,omitempty"`
	SubmittedCode  string `json:"deduce_choice_submit_code,omitempty"`
	GameOver       bool   `json:"is_game_over,omitempty"`
	GameOverReason string `json:"game_over_reason,omitempty"`
	GameSuccess    bool   `json:"game_success,omitempty"`
}

// Stats are the running totals of a session.
type Stats struct {
	TotalTime      float64 `json:"total_time"`
	TotalTurns     int     `json:"total_turns"`
	TotalRounds    int     `json:"total_rounds"`
	InputTokens    int     `json:"total_input_tokens"`
	OutputTokens   int     `json:"total_output_tokens"`
	LongestContext int     `json:"longest_context_length"`
	FormatErrors   int     `json:"total_response_with_formatting_error"`
	NotValidErrors int     `json:"total_response_with_not_valid_error"`
}

// TurnStats accumulate over the calls of the turn in flight.
type TurnStats struct {
	TimeUsed       float64 `json:"turn_time_used"`
	InputTokens    int     `json:"turn_input_tokens"`
	OutputTokens   int     `json:"turn_output_tokens"`
	LongestContext int     `json:"turn_longest_context_length"`
}

// Session is the full state of one game attempt.
type Session struct {
	ID                   string            `json:"id"`
	Mode                 Mode              `json:"mode"`
	LLMRef               string            `json:"llm_ref"`
	SetupID              string            `json:"setup_id"`
	MaxRounds            int               `json:"max_rounds"`
	GameInfo             GameInfo          `json:"game_info"`
	VerifierDescriptions string            `json:"verifier_descriptions"`
	Prompts              catalog.PromptSet `json:"base_game_prompts"`

	Messages            []llm.Message `json:"messages"`
	TurnMessages        []llm.Message `json:"turn_messages"`
	History             []TurnRecord  `json:"turn_result_history"`
	TurnMessageIndexes  []int         `json:"turn_message_indexes"`
	TurnResponseIndexes []int         `json:"turn_llm_response_indexes"`

	Stats Stats     `json:"stats"`
	Turn  TurnStats `json:"turn"`

	SubmittedCode     string `json:"submitted_code,omitempty"`
	NumVerifierPassed int    `json:"num_of_verifier_passed"`
	GameOver          bool   `json:"game_over"`
	GameOverReason    string `json:"game_over_reason,omitempty"`
	GameSuccess       bool   `json:"game_success"`
	NextStage         Stage  `json:"next_turn_name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewParams describe a session to create.
type NewParams struct {
	ID           string
	Mode         Mode
	LLMRef       string
	Setup        catalog.Setup
	MaxRounds    int
	Descriptions string
	Prompts      catalog.PromptSet
	Now          time.Time
}

// New creates a session at its first proposal, seeded with the system prompt.
func New(p NewParams) (*Session, error) {
	if p.ID == "" {
		return nil, errors.New("session id is required")
	}
	if !p.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", p.Mode)
	}
	if p.MaxRounds < 1 {
		return nil, fmt.Errorf("max rounds must be at least 1, got %d", p.MaxRounds)
	}
	if len(p.Setup.Classic) != len(p.Setup.Nightmare) {
		return nil, fmt.Errorf("setup %s has mismatched assignment lists", p.Setup.ID)
	}

	s := &Session{
		ID:        p.ID,
		Mode:      p.Mode,
		LLMRef:    p.LLMRef,
		SetupID:   p.Setup.ID,
		MaxRounds: p.MaxRounds,
		GameInfo: GameInfo{
			SetupID:              p.Setup.ID,
			Answer:               p.Setup.Answer,
			Difficulty:           p.Setup.Difficulty,
			Assignments:          slices.Clone(p.Setup.Classic),
			NightmareAssignments: slices.Clone(p.Setup.Nightmare),
		},
		VerifierDescriptions: p.Descriptions,
		Prompts:              p.Prompts,
		NextStage:            StageProposal,
		CreatedAt:            p.Now,
		UpdatedAt:            p.Now,
	}
	s.Messages = []llm.Message{{
		Role:    llm.RoleSystem,
		Content: catalog.Render(p.Prompts.System, map[string]string{"game_setup": p.Descriptions}),
	}}
	return s, nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.GameInfo.Assignments = slices.Clone(s.GameInfo.Assignments)
	c.GameInfo.NightmareAssignments = slices.Clone(s.GameInfo.NightmareAssignments)
	c.Messages = slices.Clone(s.Messages)
	c.TurnMessages = slices.Clone(s.TurnMessages)
	c.History = slices.Clone(s.History)
	c.TurnMessageIndexes = slices.Clone(s.TurnMessageIndexes)
	c.TurnResponseIndexes = slices.Clone(s.TurnResponseIndexes)
	return &c
}

// NumVerifiers is how many verifiers the player can query.
func (s *Session) NumVerifiers() int {
	return len(s.GameInfo.Active(s.Mode))
}

// AddTurnMessage appends to the scratch messages of the turn in flight.
func (s *Session) AddTurnMessage(role, content string) {
	s.TurnMessages = append(s.TurnMessages, llm.Message{Role: role, Content: content})
}

// Context returns the transcript followed by the scratch messages.
func (s *Session) Context() []llm.Message {
	out := make([]llm.Message, 0, len(s.Messages)+len(s.TurnMessages))
	out = append(out, s.Messages...)
	return append(out, s.TurnMessages...)
}

// AddCompletion folds one provider call into the turn counters.
func (s *Session) AddCompletion(c *llm.Completion) {
	s.Turn.TimeUsed += c.TimeUsed
	s.Turn.InputTokens += c.InputTokens
	s.Turn.OutputTokens += c.OutputTokens
	s.Turn.LongestContext = max(s.Turn.LongestContext, c.ContextLength())
}

// FoldTurnStats adds the turn counters to the session totals.
func (s *Session) FoldTurnStats() {
	s.Stats.TotalTime += s.Turn.TimeUsed
	s.Stats.InputTokens += s.Turn.InputTokens
	s.Stats.OutputTokens += s.Turn.OutputTokens
	s.Stats.LongestContext = max(s.Stats.LongestContext, s.Turn.LongestContext)
}

// ClearTurn drops the scratch messages and counters of the turn in flight.
func (s *Session) ClearTurn() {
	s.TurnMessages = nil
	s.Turn = TurnStats{}
}

// CompletedRounds counts deduce records in history.
func (s *Session) CompletedRounds() int {
	n := 0
	for _, r := range s.History {
		if r.Stage == StageDeduce {
			n++
		}
	}
	return n
}

// LatestRecord returns the most recent turn record.
func (s *Session) LatestRecord() (TurnRecord, bool) {
	if len(s.History) == 0 {
		return TurnRecord{}, false
	}
	return s.History[len(s.History)-1], true
}

// LatestGuessCode returns the guess code of the most recent proposal.
func (s *Session) LatestGuessCode() (string, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Stage == StageProposal {
			return s.History[i].GuessCode, true
		}
	}
	return "", false
}

// TrailingQuestions counts consecutive question records at the end of history.
func (s *Session) TrailingQuestions() int {
	n := 0
	for i := len(s.History) - 1; i >= 0 && s.History[i].Stage == StageQuestion; i-- {
		n++
	}
	return n
}

// QuestionPosition is the 1-based position of the next question in its round.
func (s *Session) QuestionPosition() int {
	return s.TrailingQuestions() + 1
}

// UpdateStatus computes the game-over fields at the end of a deduce turn.
func (s *Session) UpdateStatus() {
	switch {
	case s.SubmittedCode != "":
		s.GameOver = true
		s.GameOverReason = ReasonSubmitted
		s.GameSuccess = s.SubmittedCode == s.GameInfo.Answer
	case s.Stats.TotalRounds >= s.MaxRounds:
		s.GameOver = true
		s.GameOverReason = ReasonOverRounds
		s.GameSuccess = false
	default:
		s.GameOver = false
		s.GameOverReason = ""
		s.GameSuccess = false
	}
}

// AdvanceStage moves NextStage after the turn just recorded.
func (s *Session) AdvanceStage() {
	switch s.NextStage {
	case StageProposal:
		s.NextStage = StageQuestion
	case StageQuestion:
		last, ok := s.LatestRecord()
		if !ok || last.Stage != StageQuestion {
			return
		}
		if last.VerifierChoice == parser.Skip || s.TrailingQuestions() >= MaxQuestionsPerRound {
			s.NextStage = StageDeduce
		}
	case StageDeduce:
		if s.GameOver {
			s.NextStage = StageEnd
		} else {
			s.NextStage = StageProposal
		}
	}
}

// CheckConsistency verifies the index arrays agree with history and transcript.
func (s *Session) CheckConsistency() error {
	n := len(s.History)
	if len(s.TurnMessageIndexes) != n || len(s.TurnResponseIndexes) != n {
		return fmt.Errorf("index length mismatch: history=%d message=%d response=%d",
			n, len(s.TurnMessageIndexes), len(s.TurnResponseIndexes))
	}
	prev := 0
	for i, r := range s.History {
		if r.TurnNum != i+1 {
			return fmt.Errorf("record %d has turn number %d", i, r.TurnNum)
		}
		mi, ri := s.TurnMessageIndexes[i], s.TurnResponseIndexes[i]
		if mi < prev || mi >= len(s.Messages) {
			return fmt.Errorf("turn %d message index %d out of order", i+1, mi)
		}
		if ri <= mi || ri >= len(s.Messages) {
			return fmt.Errorf("turn %d response index %d outside its turn", i+1, ri)
		}
		prev = mi
	}
	return nil
}
