// Package catalog holds the read-only verifier, setup and prompt tables.
//
// A Catalog is built once at startup from the embedded defaults plus an
// optional override directory, validated, and then shared by every session
// without locking. Nothing mutates it after Load returns.
package catalog

import (
	"fmt"
	"sort"

	"github.com/zhubert/turnbench-core/verifier"
)

// Game modes.
const (
	ModeClassic   = "classic"
	ModeNightmare = "nightmare"
)

// Modes lists every supported mode.
var Modes = []string{ModeClassic, ModeNightmare}

// Setup is one puzzle: the hidden answer and the active criterion of each verifier.
type Setup struct {
	ID         string                `yaml:"id" json:"id"`
	Answer     string                `yaml:"answer" json:"answer"`
	Difficulty string                `yaml:"difficulty" json:"difficulty"`
	Classic    []verifier.Assignment `yaml:"classic" json:"classic"`
	Nightmare  []verifier.Assignment `yaml:"nightmare" json:"nightmare"`
}

// Assignments returns the assignment list evaluated in the given mode.
func (s Setup) Assignments(mode string) []verifier.Assignment {
	if mode == ModeNightmare {
		return s.Nightmare
	}
	return s.Classic
}

// Catalog is the immutable set of verifiers, setups and prompt templates.
type Catalog struct {
	verifiers map[int]verifier.Verifier
	setups    map[string]Setup
	prompts   map[string]string
}

func newCatalog() *Catalog {
	return &Catalog{
		verifiers: make(map[int]verifier.Verifier),
		setups:    make(map[string]Setup),
		prompts:   make(map[string]string),
	}
}

// Verifier implements verifier.Source.
func (c *Catalog) Verifier(id int) (verifier.Verifier, bool) {
	v, ok := c.verifiers[id]
	return v, ok
}

// Verifiers returns all verifiers ordered by id.
func (c *Catalog) Verifiers() []verifier.Verifier {
	out := make([]verifier.Verifier, 0, len(c.verifiers))
	for _, v := range c.verifiers {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Setup returns the setup with the given id.
func (c *Catalog) Setup(id string) (Setup, bool) {
	s, ok := c.setups[id]
	return s, ok
}

// Setups returns all setups ordered by id.
func (c *Catalog) Setups() []Setup {
	out := make([]Setup, 0, len(c.setups))
	for _, s := range c.setups {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Describe renders the player-facing description of a setup. The classic
// cards are always shown; nightmare mode only changes what is evaluated.
func (c *Catalog) Describe(s Setup) (string, error) {
	cards := make([]verifier.Verifier, 0, len(s.Classic))
	for _, a := range s.Classic {
		v, ok := c.verifiers[a.VerifierID]
		if !ok {
			return "", &verifier.LookupError{Kind: "verifier", Key: fmt.Sprint(a.VerifierID)}
		}
		cards = append(cards, v)
	}
	return verifier.Describe(cards)
}
