// Package verifier evaluates hidden criteria against 3-digit guess codes.
//
// A Verifier groups several candidate Criteria; exactly one of them is active
// for a given game setup. The active pairing is expressed as an Assignment,
// and its position in a setup's assignment list is the verifier number the
// player refers to.
package verifier

import (
	"errors"
	"fmt"
	"strings"
)

// Criterion is one boolean rule a verifier can hold.
type Criterion struct {
	ID          int    `yaml:"id" json:"id"`
	Description string `yaml:"description" json:"description"`
	Predicate   string `yaml:"predicate" json:"predicate"`
}

// Verifier is a named rule group with its candidate criteria.
type Verifier struct {
	ID          int         `yaml:"id" json:"id"`
	Description string      `yaml:"description" json:"description"`
	Criteria    []Criterion `yaml:"criteria" json:"criteria"`
}

// Assignment binds a verifier to its active criterion for one setup.
type Assignment struct {
	VerifierID  int `yaml:"verifier_id" json:"verifier_id"`
	CriterionID int `yaml:"criterion_id" json:"criterion_id"`
}

// ErrLookup is matched by every LookupError.
var ErrLookup = errors.New("verifier lookup failed")

// LookupError reports a verifier, criterion or predicate that does not exist.
// It signals the catalog and a session disagree and is never retried.
type LookupError struct {
	Kind string // "verifier", "criterion" or "predicate"
	Key  string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("unknown %s %s", e.Kind, e.Key)
}

func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}

// Criterion returns the criterion with the given id.
func (v Verifier) Criterion(id int) (Criterion, bool) {
	for _, c := range v.Criteria {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// Verify evaluates the criterion identified by criterionID against code.
func Verify(v Verifier, criterionID int, code string) (bool, error) {
	criterion, ok := v.Criterion(criterionID)
	if !ok {
		return false, &LookupError{Kind: "criterion", Key: fmt.Sprintf("%d of verifier %d", criterionID, v.ID)}
	}
	pred, ok := LookupPredicate(criterion.Predicate)
	if !ok {
		return false, &LookupError{Kind: "predicate", Key: criterion.Predicate}
	}
	c, err := ParseCode(code)
	if err != nil {
		return false, err
	}
	return pred(c), nil
}

// Source resolves verifiers by id.
type Source interface {
	Verifier(id int) (Verifier, bool)
}

// Evaluate resolves the assignment's verifier from src and verifies code against it.
func Evaluate(src Source, a Assignment, code string) (bool, error) {
	v, ok := src.Verifier(a.VerifierID)
	if !ok {
		return false, &LookupError{Kind: "verifier", Key: fmt.Sprint(a.VerifierID)}
	}
	return Verify(v, a.CriterionID, code)
}

// CountPassed returns how many assignments code satisfies.
func CountPassed(src Source, assignments []Assignment, code string) (int, error) {
	n := 0
	for _, a := range assignments {
		ok, err := Evaluate(src, a, code)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Describe renders the numbered verifier list shown to the player.
func Describe(verifiers []Verifier) (string, error) {
	if len(verifiers) == 0 {
		return "", errors.New("verifier list is empty")
	}
	blocks := make([]string, 0, len(verifiers))
	for i, v := range verifiers {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Verifier <%d>: %s", i, v.Description)
		for _, c := range v.Criteria {
			sb.WriteString("\n- Possible criteria: ")
			sb.WriteString(c.Description)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n"), nil
}
