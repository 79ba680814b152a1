// Package parser extracts structured decisions from tagged model responses.
//
// A response carries a <REASONING> tag followed by a <CHOICE> tag. Tags match
// case-insensitively and only the first occurrence of each counts. The
// reasoning is the text between the tags, the choice everything after
// <CHOICE>; both are trimmed and lose one leading colon.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Skip is the choice a model gives to decline a question or a submission.
const Skip = "SKIP"

var (
	reasoningTagRe = regexp.MustCompile(`(?i)<REASONING>`)
	choiceTagRe    = regexp.MustCompile(`(?i)<CHOICE>`)
	blueRe         = regexp.MustCompile(`(?i)BLUE\s*=\s*(\d+)`)
	yellowRe       = regexp.MustCompile(`(?i)YELLOW\s*=\s*(\d+)`)
	purpleRe       = regexp.MustCompile(`(?i)PURPLE\s*=\s*(\d+)`)
	integerRe      = regexp.MustCompile(`\d+`)
)

// ErrFormat is matched by every FormatError.
var ErrFormat = errors.New("response format error")

// FormatError reports a response that does not follow the tag grammar.
type FormatError struct {
	Stage  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Stage == "" {
		return "format error: " + e.Reason
	}
	return fmt.Sprintf("%s format error: %s", e.Stage, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Span is a half-open byte range [Start, End) within a response.
type Span struct {
	Start int
	End   int
}

// Slice returns the text the span covers.
func (s Span) Slice(text string) string {
	return text[s.Start:s.End]
}

// Location holds byte offsets of the tags and the trimmed text regions.
type Location struct {
	ReasoningTag Span
	ChoiceTag    Span
	Reasoning    Span
	Choice       Span
}

// Result is the parsed content of a response.
type Result struct {
	Reasoning string
	Choice    string
}

// Locate finds both tags in resp and the trimmed reasoning and choice regions.
func Locate(resp string) (Location, error) {
	var loc Location

	choice := choiceTagRe.FindStringIndex(resp)
	if choice == nil {
		return loc, &FormatError{Reason: "cannot find <CHOICE> tag in response"}
	}
	reasoning := reasoningTagRe.FindStringIndex(resp)
	if reasoning == nil {
		return loc, &FormatError{Reason: "cannot find <REASONING> tag in response"}
	}
	if reasoning[0] > choice[0] {
		return loc, &FormatError{Reason: "<REASONING> tag must precede <CHOICE> tag"}
	}

	loc.ReasoningTag = Span{reasoning[0], reasoning[1]}
	loc.ChoiceTag = Span{choice[0], choice[1]}
	loc.Reasoning = trimRegion(resp, loc.ReasoningTag.End, loc.ChoiceTag.Start)
	loc.Choice = trimRegion(resp, loc.ChoiceTag.End, len(resp))
	return loc, nil
}

// trimRegion narrows [start, end) by stripping whitespace, one leading colon,
// then whitespace again.
func trimRegion(text string, start, end int) Span {
	s := text[start:end]
	lead := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	s = strings.TrimSpace(s)
	start += lead
	end = start + len(s)

	if strings.HasPrefix(s, ":") {
		s = s[1:]
		start++
		lead = len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
		s = strings.TrimSpace(s)
		start += lead
		end = start + len(s)
	}
	return Span{start, end}
}

func parse(stage, resp string) (Result, error) {
	loc, err := Locate(resp)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Stage = stage
		}
		return Result{}, err
	}
	return Result{
		Reasoning: loc.Reasoning.Slice(resp),
		Choice:    loc.Choice.Slice(resp),
	}, nil
}

// parseCode reads the first BLUE=, YELLOW= and PURPLE= assignments in any order.
func parseCode(stage, choice string) (string, error) {
	var sb strings.Builder
	for _, label := range []struct {
		name string
		re   *regexp.Regexp
	}{{"BLUE", blueRe}, {"YELLOW", yellowRe}, {"PURPLE", purpleRe}} {
		m := label.re.FindStringSubmatch(choice)
		if m == nil {
			return "", &FormatError{Stage: stage, Reason: fmt.Sprintf("cannot find %s value in choice %q", label.name, choice)}
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n > 9 {
			return "", &FormatError{Stage: stage, Reason: fmt.Sprintf("%s value %q is not a single digit", label.name, m[1])}
		}
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String(), nil
}

// ExtractProposal parses a proposal response into reasoning and a 3-digit guess code.
func ExtractProposal(resp string) (Result, error) {
	r, err := parse("proposal", resp)
	if err != nil {
		return r, err
	}
	code, err := parseCode("proposal", r.Choice)
	if err != nil {
		return Result{}, err
	}
	r.Choice = code
	return r, nil
}

// ExtractQuestion parses a question response. The choice is SKIP or the
// verifier index as a decimal string; range checking is left to the caller.
func ExtractQuestion(resp string) (Result, error) {
	r, err := parse("question", resp)
	if err != nil {
		return r, err
	}
	if strings.Contains(r.Choice, Skip) {
		r.Choice = Skip
		return r, nil
	}
	m := integerRe.FindString(r.Choice)
	if m == "" {
		return Result{}, &FormatError{Stage: "question", Reason: fmt.Sprintf("did not find any choice in %q", r.Choice)}
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return Result{}, &FormatError{Stage: "question", Reason: fmt.Sprintf("choice %q is not a valid index", m)}
	}
	r.Choice = strconv.Itoa(n)
	return r, nil
}

// ExtractDeduce parses a deduce response. The choice is SKIP or a 3-digit code.
func ExtractDeduce(resp string) (Result, error) {
	r, err := parse("deduce", resp)
	if err != nil {
		return r, err
	}
	if strings.Contains(r.Choice, Skip) {
		r.Choice = Skip
		return r, nil
	}
	code, err := parseCode("deduce", r.Choice)
	if err != nil {
		return Result{}, err
	}
	r.Choice = code
	return r, nil
}

// FormatCodeChoice renders a guess code the way a proposal choice is written.
func FormatCodeChoice(code string) string {
	if len(code) != 3 {
		return code
	}
	return fmt.Sprintf("BLUE=%c YELLOW=%c PURPLE=%c", code[0], code[1], code[2])
}
