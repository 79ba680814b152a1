package catalog

import (
	"fmt"

	"github.com/zhubert/turnbench-core/verifier"
)

// ValidationError describes a single validation problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Catalog for errors and returns all problems found.
func Validate(c *Catalog) []ValidationError {
	var errs []ValidationError

	if len(c.verifiers) == 0 {
		errs = append(errs, ValidationError{Field: "verifiers", Message: "at least one verifier is required"})
	}
	for _, v := range c.Verifiers() {
		errs = append(errs, validateVerifier(v)...)
	}

	if len(c.setups) == 0 {
		errs = append(errs, ValidationError{Field: "setups", Message: "at least one setup is required"})
	}
	for _, s := range c.Setups() {
		errs = append(errs, validateSetup(c, s)...)
	}

	for _, mode := range Modes {
		if _, err := c.Prompts(mode, DefaultStyle); err != nil {
			errs = append(errs, ValidationError{Field: "prompts." + mode, Message: err.Error()})
		}
	}

	return errs
}

func validateVerifier(v verifier.Verifier) []ValidationError {
	var errs []ValidationError
	prefix := fmt.Sprintf("verifiers.%d", v.ID)

	if v.ID <= 0 {
		errs = append(errs, ValidationError{Field: prefix + ".id", Message: "id must be positive"})
	}
	if v.Description == "" {
		errs = append(errs, ValidationError{Field: prefix + ".description", Message: "description is required"})
	}
	if len(v.Criteria) < 2 {
		errs = append(errs, ValidationError{Field: prefix + ".criteria", Message: "at least two criteria are required"})
	}

	seen := make(map[int]bool, len(v.Criteria))
	for _, cr := range v.Criteria {
		field := fmt.Sprintf("%s.criteria.%d", prefix, cr.ID)
		if seen[cr.ID] {
			errs = append(errs, ValidationError{Field: field, Message: "duplicate criterion id"})
		}
		seen[cr.ID] = true
		if !verifier.HasPredicate(cr.Predicate) {
			errs = append(errs, ValidationError{Field: field + ".predicate", Message: fmt.Sprintf("unknown predicate %q", cr.Predicate)})
		}
	}
	return errs
}

func validateSetup(c *Catalog, s Setup) []ValidationError {
	var errs []ValidationError
	prefix := "setups." + s.ID

	if s.ID == "" {
		errs = append(errs, ValidationError{Field: "setups", Message: "setup id is required"})
	}
	if _, err := verifier.ParseCode(s.Answer); err != nil {
		errs = append(errs, ValidationError{Field: prefix + ".answer", Message: err.Error()})
		return errs
	}
	if len(s.Classic) == 0 {
		errs = append(errs, ValidationError{Field: prefix + ".classic", Message: "at least one assignment is required"})
	}
	if len(s.Nightmare) != len(s.Classic) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".nightmare",
			Message: fmt.Sprintf("has %d assignments, classic has %d", len(s.Nightmare), len(s.Classic)),
		})
	}

	for _, mode := range Modes {
		for i, a := range s.Assignments(mode) {
			field := fmt.Sprintf("%s.%s.%d", prefix, mode, i)
			ok, err := verifier.Evaluate(c, a, s.Answer)
			if err != nil {
				errs = append(errs, ValidationError{Field: field, Message: err.Error()})
				continue
			}
			if !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("answer %s does not satisfy verifier %d criterion %d", s.Answer, a.VerifierID, a.CriterionID),
				})
			}
		}
	}
	return errs
}
