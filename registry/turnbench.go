package registry

import (
	"context"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/store"
)

// TurnbenchName is the registry name of the deduction game.
const TurnbenchName = "turnbench"

// Turnbench is the deduction game backed by a catalog.
type Turnbench struct {
	catalog *catalog.Catalog
}

// NewTurnbench creates the game over c.
func NewTurnbench(c *catalog.Catalog) *Turnbench {
	return &Turnbench{catalog: c}
}

func (t *Turnbench) Name() string {
	return TurnbenchName
}

func (t *Turnbench) CreateModel() GameInfo {
	return GameInfo{
		Name:        TurnbenchName,
		DisplayName: "Turing Machine Bench",
		Description: "Deduce a hidden three-digit code by proposing guesses and questioning verifiers that each check one hidden criterion.",
	}
}

// EnsureSetupSeeded writes every catalog setup when any of them is missing
// from st.
func (t *Turnbench) EnsureSetupSeeded(ctx context.Context, st store.SetupStore) (int, error) {
	existing, err := st.ListSetups(ctx)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.ID] = true
	}

	setups := t.catalog.Setups()
	missing := false
	for _, s := range setups {
		if !have[s.ID] {
			missing = true
			break
		}
	}
	if !missing {
		return 0, nil
	}

	for _, s := range setups {
		if err := st.PutSetup(ctx, s); err != nil {
			return 0, err
		}
	}
	return len(setups), nil
}
