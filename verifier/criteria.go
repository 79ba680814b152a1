package verifier

import "sort"

// Predicate is a pure test over a guess code.
type Predicate func(Code) bool

type cmpOp int

const (
	lt cmpOp = iota
	eq
	gt
)

func (op cmpOp) apply(a, b int) bool {
	switch op {
	case lt:
		return a < b
	case eq:
		return a == b
	default:
		return a > b
	}
}

// slotVs compares one slot against a constant.
func slotVs(s Slot, op cmpOp, n int) Predicate {
	return func(c Code) bool { return op.apply(c[s], n) }
}

// slotVsSlot compares two slots.
func slotVsSlot(a Slot, op cmpOp, b Slot) Predicate {
	return func(c Code) bool { return op.apply(c[a], c[b]) }
}

func slotParity(s Slot, even bool) Predicate {
	return func(c Code) bool { return (c[s]%2 == 0) == even }
}

func digitCount(d, n int) Predicate {
	return func(c Code) bool { return c.Count(d) == n }
}

func evenCount(n int) Predicate {
	return func(c Code) bool { return c.Evens() == n }
}

func sumVs(op cmpOp, n int) Predicate {
	return func(c Code) bool { return op.apply(c.Sum(), n) }
}

func pairSumVs(a, b Slot, op cmpOp, n int) Predicate {
	return func(c Code) bool { return op.apply(c[a]+c[b], n) }
}

func sumMultipleOf(n int) Predicate {
	return func(c Code) bool { return c.Sum()%n == 0 }
}

// smallest reports whether slot s is below both others, or not above them when ties count.
func smallest(s Slot, tie bool) Predicate {
	return func(c Code) bool {
		for o := Blue; o <= Purple; o++ {
			if o == s {
				continue
			}
			if tie && c[s] > c[o] || !tie && c[s] >= c[o] {
				return false
			}
		}
		return true
	}
}

func largest(s Slot, tie bool) Predicate {
	return func(c Code) bool {
		for o := Blue; o <= Purple; o++ {
			if o == s {
				continue
			}
			if tie && c[s] < c[o] || !tie && c[s] <= c[o] {
				return false
			}
		}
		return true
	}
}

func ascending(c Code) bool  { return c[Blue] < c[Yellow] && c[Yellow] < c[Purple] }
func descending(c Code) bool { return c[Blue] > c[Yellow] && c[Yellow] > c[Purple] }

func threeAscending(c Code) bool {
	return c[Yellow] == c[Blue]+1 && c[Purple] == c[Yellow]+1
}

// twoAscending holds when exactly one adjacent pair steps up by one.
func twoAscending(c Code) bool {
	first := c[Yellow] == c[Blue]+1
	second := c[Purple] == c[Yellow]+1
	return first != second
}

func noAscending(c Code) bool {
	return c[Yellow] != c[Blue]+1 && c[Purple] != c[Yellow]+1
}

func threeInSequence(c Code) bool {
	d1 := c[Yellow] - c[Blue]
	d2 := c[Purple] - c[Yellow]
	return d1 == d2 && (d1 == 1 || d1 == -1)
}

func twoInSequence(c Code) bool {
	if threeInSequence(c) {
		return false
	}
	return abs(c[Yellow]-c[Blue]) == 1 || abs(c[Purple]-c[Yellow]) == 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var predicates = map[string]Predicate{
	// single slot against a constant
	"blue_eq_1":   slotVs(Blue, eq, 1),
	"blue_gt_1":   slotVs(Blue, gt, 1),
	"blue_lt_3":   slotVs(Blue, lt, 3),
	"blue_eq_3":   slotVs(Blue, eq, 3),
	"blue_gt_3":   slotVs(Blue, gt, 3),
	"blue_lt_4":   slotVs(Blue, lt, 4),
	"blue_eq_4":   slotVs(Blue, eq, 4),
	"blue_gt_4":   slotVs(Blue, gt, 4),
	"yellow_eq_1": slotVs(Yellow, eq, 1),
	"yellow_gt_1": slotVs(Yellow, gt, 1),
	"yellow_lt_3": slotVs(Yellow, lt, 3),
	"yellow_eq_3": slotVs(Yellow, eq, 3),
	"yellow_gt_3": slotVs(Yellow, gt, 3),
	"yellow_lt_4": slotVs(Yellow, lt, 4),
	"yellow_eq_4": slotVs(Yellow, eq, 4),
	"yellow_gt_4": slotVs(Yellow, gt, 4),
	"purple_eq_1": slotVs(Purple, eq, 1),
	"purple_gt_1": slotVs(Purple, gt, 1),
	"purple_lt_3": slotVs(Purple, lt, 3),
	"purple_eq_3": slotVs(Purple, eq, 3),
	"purple_gt_3": slotVs(Purple, gt, 3),
	"purple_lt_4": slotVs(Purple, lt, 4),
	"purple_eq_4": slotVs(Purple, eq, 4),
	"purple_gt_4": slotVs(Purple, gt, 4),

	// parity
	"blue_is_even":   slotParity(Blue, true),
	"blue_is_odd":    slotParity(Blue, false),
	"yellow_is_even": slotParity(Yellow, true),
	"yellow_is_odd":  slotParity(Yellow, false),
	"purple_is_even": slotParity(Purple, true),
	"purple_is_odd":  slotParity(Purple, false),

	// digit frequency
	"zero_1s":  digitCount(1, 0),
	"one_1":    digitCount(1, 1),
	"two_1s":   digitCount(1, 2),
	"three_1s": digitCount(1, 3),
	"zero_3s":  digitCount(3, 0),
	"one_3":    digitCount(3, 1),
	"two_3s":   digitCount(3, 2),
	"three_3s": digitCount(3, 3),
	"zero_4s":  digitCount(4, 0),
	"one_4":    digitCount(4, 1),
	"two_4s":   digitCount(4, 2),
	"three_4s": digitCount(4, 3),

	// slot against slot
	"blue_lt_yellow":   slotVsSlot(Blue, lt, Yellow),
	"blue_eq_yellow":   slotVsSlot(Blue, eq, Yellow),
	"blue_gt_yellow":   slotVsSlot(Blue, gt, Yellow),
	"blue_lt_purple":   slotVsSlot(Blue, lt, Purple),
	"blue_eq_purple":   slotVsSlot(Blue, eq, Purple),
	"blue_gt_purple":   slotVsSlot(Blue, gt, Purple),
	"yellow_lt_purple": slotVsSlot(Yellow, lt, Purple),
	"yellow_eq_purple": slotVsSlot(Yellow, eq, Purple),
	"yellow_gt_purple": slotVsSlot(Yellow, gt, Purple),
	"yellow_lt_blue":   slotVsSlot(Yellow, lt, Blue),
	"yellow_eq_blue":   slotVsSlot(Yellow, eq, Blue),
	"yellow_gt_blue":   slotVsSlot(Yellow, gt, Blue),

	// extremes
	"blue_smallest":          smallest(Blue, false),
	"yellow_smallest":        smallest(Yellow, false),
	"purple_smallest":        smallest(Purple, false),
	"blue_largest":           largest(Blue, false),
	"yellow_largest":         largest(Yellow, false),
	"purple_largest":         largest(Purple, false),
	"blue_smallest_or_tie":   smallest(Blue, true),
	"yellow_smallest_or_tie": smallest(Yellow, true),
	"purple_smallest_or_tie": smallest(Purple, true),
	"blue_largest_or_tie":    largest(Blue, true),
	"yellow_largest_or_tie":  largest(Yellow, true),
	"purple_largest_or_tie":  largest(Purple, true),

	// even/odd counts
	"more_even_numbers":  func(c Code) bool { return c.Evens() > CodeLength-c.Evens() },
	"more_odd_numbers":   func(c Code) bool { return c.Evens() < CodeLength-c.Evens() },
	"zero_even_numbers":  evenCount(0),
	"one_even_number":    evenCount(1),
	"two_even_numbers":   evenCount(2),
	"three_even_numbers": evenCount(3),

	// sums
	"sum_is_even":       func(c Code) bool { return c.Sum()%2 == 0 },
	"sum_is_odd":        func(c Code) bool { return c.Sum()%2 == 1 },
	"sum_lt_6":          sumVs(lt, 6),
	"sum_eq_6":          sumVs(eq, 6),
	"sum_gt_6":          sumVs(gt, 6),
	"sum_multiple_of_3": sumMultipleOf(3),
	"sum_multiple_of_4": sumMultipleOf(4),
	"sum_multiple_of_5": sumMultipleOf(5),

	// pair sums
	"blue_yellow_sum_lt_6":   pairSumVs(Blue, Yellow, lt, 6),
	"blue_yellow_sum_eq_6":   pairSumVs(Blue, Yellow, eq, 6),
	"blue_yellow_sum_gt_6":   pairSumVs(Blue, Yellow, gt, 6),
	"blue_yellow_sum_eq_4":   pairSumVs(Blue, Yellow, eq, 4),
	"blue_purple_sum_eq_4":   pairSumVs(Blue, Purple, eq, 4),
	"yellow_purple_sum_eq_4": pairSumVs(Yellow, Purple, eq, 4),
	"blue_purple_sum_eq_6":   pairSumVs(Blue, Purple, eq, 6),
	"yellow_purple_sum_eq_6": pairSumVs(Yellow, Purple, eq, 6),

	// repetition
	"triple_number": func(c Code) bool { return c.Distinct() == 1 },
	"double_number": func(c Code) bool { return c.Distinct() == 2 },
	"no_repetition": func(c Code) bool { return c.Distinct() == 3 },
	"has_pair":      func(c Code) bool { return c.Distinct() == 2 },
	"no_pairs":      func(c Code) bool { return c.Distinct() != 2 },

	// order and runs
	"ascending_order":  ascending,
	"descending_order": descending,
	"no_order":         func(c Code) bool { return !ascending(c) && !descending(c) },
	"three_ascending":  threeAscending,
	"two_ascending":    twoAscending,
	"no_ascending":     noAscending,

	"three_in_sequence_in_ascending_or_descending": threeInSequence,
	"two_in_sequence_in_ascending_or_descending":   twoInSequence,
	"no_sequence_in_ascending_or_descending": func(c Code) bool {
		return !twoInSequence(c) && !threeInSequence(c)
	},
}

// LookupPredicate returns the predicate registered under name.
func LookupPredicate(name string) (Predicate, bool) {
	p, ok := predicates[name]
	return p, ok
}

// HasPredicate reports whether name is a known predicate.
func HasPredicate(name string) bool {
	_, ok := predicates[name]
	return ok
}

// PredicateNames returns all registered predicate names, sorted.
func PredicateNames() []string {
	names := make([]string, 0, len(predicates))
	for name := range predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
