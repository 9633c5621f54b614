package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/orchestra/core"
)

type stubAgent struct{ name string }

func (s *stubAgent) Invoke(context.Context, any, core.ContextView) (any, error) { return s.name, nil }

func TestRegistry_RegisterResolveRoundTrip(t *testing.T) {
	reg := New()
	a := &stubAgent{name: "R"}

	require.NoError(t, reg.Register("R", a))

	got, err := reg.Resolve("R")
	require.NoError(t, err)
	assert.Same(t, a, got)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := New()

	_, err := reg.Resolve("Z")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownRole)
	assert.Equal(t, core.KindUnknownRole, core.Classify(err))
}

func TestRegistry_DuplicateAndReplace(t *testing.T) {
	reg := New()
	first, second := &stubAgent{name: "1"}, &stubAgent{name: "2"}

	require.NoError(t, reg.Register("research", first))

	err := reg.Register("research", second)
	assert.ErrorIs(t, err, core.ErrDuplicateRole)

	got, _ := reg.Resolve("research")
	assert.Same(t, first, got, "failed registration must keep the original binding")

	require.NoError(t, reg.Register("research", second, WithReplace()))
	got, _ = reg.Resolve("research")
	assert.Same(t, second, got)
}

func TestRegistry_RejectsInvalidBindings(t *testing.T) {
	reg := New()

	assert.ErrorIs(t, reg.Register("", &stubAgent{}), core.ErrContractViolation)
	assert.ErrorIs(t, reg.Register("x", nil), core.ErrContractViolation)
	assert.Panics(t, func() { reg.MustRegister("", &stubAgent{}) })
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_ListAndUnregister(t *testing.T) {
	reg := New()
	reg.MustRegister("execution", &stubAgent{})
	reg.MustRegister("analysis", &stubAgent{})
	reg.MustRegister("research", &stubAgent{})

	assert.Equal(t, []core.Role{"analysis", "execution", "research"}, reg.List())

	assert.True(t, reg.Unregister("analysis"))
	assert.False(t, reg.Unregister("analysis"))
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	reg := New()
	reg.MustRegister("research", &stubAgent{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Resolve("research")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
