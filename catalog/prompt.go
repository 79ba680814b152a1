package catalog

import (
	"fmt"
	"strings"
)

// PromptSet is the resolved template set a session is frozen with.
type PromptSet struct {
	System                 string `json:"system_prompt"`
	Proposal               string `json:"proposal_prompt"`
	NotValidProposalFormat string `json:"not_valid_proposal_format_prompt"`
	FirstQuestion          string `json:"first_question_prompt"`
	FollowingQuestion      string `json:"following_question_prompt"`
	AfterLastQuestion      string `json:"after_last_question_prompt"`
	NotValidVerifierChoice string `json:"not_valid_verifier_choice_prompt"`
	NotValidQuestionFormat string `json:"not_valid_question_format_prompt"`
	Deduce                 string `json:"deduce_prompt"`
	NotValidDeduceFormat   string `json:"not_valid_deduce_format_prompt"`
	DeduceResult           string `json:"deduce_result_prompt"`
}

// PromptStyle selects template variants.
type PromptStyle struct {
	Reasoning bool
	Hint      bool
}

// DefaultStyle asks for reasoning and includes strategy hints.
var DefaultStyle = PromptStyle{Reasoning: true, Hint: true}

// promptKeys returns lookup keys for field from most to least specific.
func promptKeys(mode, field string, style PromptStyle) []string {
	base := mode + "_" + field
	var keys []string
	if style.Reasoning && style.Hint {
		keys = append(keys, base+"_with_reasoning_with_hint")
	}
	if style.Reasoning {
		keys = append(keys, base+"_with_reasoning")
	}
	if style.Hint {
		keys = append(keys, base+"_with_hint")
	}
	return append(keys, base)
}

func (c *Catalog) lookup(mode, field string, style PromptStyle) (string, error) {
	keys := promptKeys(mode, field, style)
	for _, k := range keys {
		if p, ok := c.prompts[k]; ok && p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("no prompt template for %s (tried %s)", field, strings.Join(keys, ", "))
}

// Prompt returns a raw template by its full key.
func (c *Catalog) Prompt(key string) (string, bool) {
	p, ok := c.prompts[key]
	return p, ok
}

// Prompts resolves the full template set for a mode.
func (c *Catalog) Prompts(mode string, style PromptStyle) (PromptSet, error) {
	var ps PromptSet
	system, ok := c.prompts[mode+"_system_prompt"]
	if !ok || system == "" {
		return ps, fmt.Errorf("no system prompt for mode %q", mode)
	}
	ps.System = system

	fields := []struct {
		name string
		dst  *string
	}{
		{"proposal_prompt", &ps.Proposal},
		{"not_valid_proposal_format_prompt", &ps.NotValidProposalFormat},
		{"first_question_prompt", &ps.FirstQuestion},
		{"following_question_prompt", &ps.FollowingQuestion},
		{"after_last_question_prompt", &ps.AfterLastQuestion},
		{"not_valid_verifier_choice_prompt", &ps.NotValidVerifierChoice},
		{"not_valid_question_format_prompt", &ps.NotValidQuestionFormat},
		{"deduce_prompt", &ps.Deduce},
		{"not_valid_deduce_format_prompt", &ps.NotValidDeduceFormat},
		{"deduce_result_prompt", &ps.DeduceResult},
	}
	for _, f := range fields {
		p, err := c.lookup(mode, f.name, style)
		if err != nil {
			return PromptSet{}, fmt.Errorf("mode %s: %w", mode, err)
		}
		*f.dst = p
	}
	return ps, nil
}

// Render substitutes {name} placeholders in tmpl. Placeholders without a
// value are left untouched.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
