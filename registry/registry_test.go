package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhubert/turnbench-core/catalog"
	"github.com/zhubert/turnbench-core/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.Register(NewTurnbench(c)))
	assert.Error(t, r.Register(NewTurnbench(c)), "duplicate names are rejected")

	g, ok := r.Get(TurnbenchName)
	require.True(t, ok)
	assert.Equal(t, TurnbenchName, g.CreateModel().Name)

	_, ok = r.Get("chess")
	assert.False(t, ok)

	assert.Equal(t, []string{TurnbenchName}, r.Names())
	require.Len(t, r.Infos(), 1)
	assert.NotEmpty(t, r.Infos()[0].Description)
}

func TestTurnbench_EnsureSetupSeeded(t *testing.T) {
	ctx := context.Background()
	c, err := catalog.Default()
	require.NoError(t, err)
	st := store.NewMemory()
	g := NewTurnbench(c)

	n, err := g.EnsureSetupSeeded(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, len(c.Setups()), n)

	n, err = g.EnsureSetupSeeded(ctx, st)
	require.NoError(t, err)
	assert.Zero(t, n, "second seed is a no-op")

	got, err := st.GetSetup(ctx, "s1")
	require.NoError(t, err)
	want, _ := c.Setup("s1")
	assert.Equal(t, want, got)
}

func TestRegistry_SeedAll(t *testing.T) {
	ctx := context.Background()
	c, err := catalog.Default()
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.Register(NewTurnbench(c)))
	st := store.NewMemory()

	require.NoError(t, r.SeedAll(ctx, st, testLogger()))
	setups, err := st.ListSetups(ctx)
	require.NoError(t, err)
	assert.Len(t, setups, len(c.Setups()))
}
