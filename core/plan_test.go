package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvocation_ResultKey(t *testing.T) {
	inv := Invoke("research", "topic")
	assert.Equal(t, "research", inv.ResultKey())

	keyed := inv.WithKey("research-2").WithTimeout(time.Second)
	assert.Equal(t, "research-2", keyed.ResultKey())
	assert.Equal(t, time.Second, keyed.Timeout)
	assert.Empty(t, inv.Key, "With* must return a copy")
}

func TestPlan_Builders(t *testing.T) {
	p := Sequence(Invoke("research", nil), Invoke("analysis", nil))
	require.Len(t, p.Stages, 2)
	assert.Equal(t, 2, p.Size())

	p = Parallel(Invoke("a", nil), Invoke("b", nil)).Then(Invoke("merge", nil))
	require.Len(t, p.Stages, 2)
	assert.Len(t, p.Stages[0].Invocations, 2)
	assert.Equal(t, []string{"a", "b", "merge"}, p.Keys())
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{"valid", Sequence(Invoke("a", nil), Invoke("b", nil)), false},
		{"empty", Plan{}, true},
		{"empty stage", NewPlan(NewStage(Invoke("a", nil)), NewStage()), true},
		{"empty role", Parallel(Invoke("", nil)), true},
		{"duplicate key", Sequence(Invoke("a", nil), Invoke("a", nil)), true},
		{"same role distinct keys", Parallel(Invoke("a", 1).WithKey("a1"), Invoke("a", 2).WithKey("a2")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}
