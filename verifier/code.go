package verifier

import "fmt"

// Slot identifies one position of a guess code.
type Slot int

const (
	Blue Slot = iota
	Yellow
	Purple
)

// String returns the color name of the slot.
func (s Slot) String() string {
	switch s {
	case Blue:
		return "blue"
	case Yellow:
		return "yellow"
	case Purple:
		return "purple"
	default:
		return "unknown"
	}
}

// CodeLength is the number of digits in a guess code.
const CodeLength = 3

// Code is a parsed guess code, one digit per slot.
type Code [CodeLength]int

// ParseCode parses a 3-character string of decimal digits.
func ParseCode(s string) (Code, error) {
	var c Code
	if len(s) != CodeLength {
		return c, fmt.Errorf("code %q must have %d digits", s, CodeLength)
	}
	for i := 0; i < CodeLength; i++ {
		ch := s[i]
		if ch < '0' || ch > '9' {
			return c, fmt.Errorf("code %q has non-digit at position %d", s, i)
		}
		c[i] = int(ch - '0')
	}
	return c, nil
}

// String renders the code back to its 3-digit form.
func (c Code) String() string {
	return fmt.Sprintf("%d%d%d", c[Blue], c[Yellow], c[Purple])
}

// Sum returns the sum of all three digits.
func (c Code) Sum() int {
	return c[Blue] + c[Yellow] + c[Purple]
}

// Count returns how many slots hold digit d.
func (c Code) Count(d int) int {
	n := 0
	for _, v := range c {
		if v == d {
			n++
		}
	}
	return n
}

// Evens returns how many slots hold an even digit.
func (c Code) Evens() int {
	n := 0
	for _, v := range c {
		if v%2 == 0 {
			n++
		}
	}
	return n
}

// Distinct returns the number of distinct digits in the code.
func (c Code) Distinct() int {
	seen := make(map[int]bool, CodeLength)
	for _, v := range c {
		seen[v] = true
	}
	return len(seen)
}
