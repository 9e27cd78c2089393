package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saad749/rheem/internal/mapping"
	"github.com/saad749/rheem/internal/plan"
	"github.com/saad749/rheem/platform/local"
)

func TestLocalMappingLoadProfileConfigKeys(t *testing.T) {
	cases := []struct {
		class   string
		keyName string
	}{
		{"map", "local-map"},
		{"filter", "local-filter"},
		{"reduceBy", "local-reduce"},
		{"join", "local-join"},
		{"groupBy", "local-groupby"},
		{"source", "local-source"},
		{"collect", "local-collect"},
	}

	for _, c := range cases {
		b := plan.NewPlanBuilder()
		id := b.AllocID()
		logical := plan.NewElementaryOperator(id, c.class, 1, 1)
		b.Register(logical)

		registry := mapping.NewRegistry(mapping.LocalMapping{})
		p := b.Build()

		h, err := registry.Apply(p, 0)
		require.NoError(t, err)

		alts := h.AlternativesFor(id)
		require.Len(t, alts, 1, "class %s", c.class)
		require.Equal(t, local.Platform, alts[0].Operator.Platform)
		require.Contains(t, alts[0].Operator.LoadProfileConfigKey, c.keyName)
	}
}

func TestLocalMappingApplyLeavesBasePlanUnchanged(t *testing.T) {
	// Apply records replacements as alternatives in the hyperplan; the
	// hyperplan's base is the input plan itself, still holding only the
	// logical operator.
	b := plan.NewPlanBuilder()
	id := b.AllocID()
	logical := plan.NewElementaryOperator(id, "map", 1, 1)
	b.Register(logical)
	p := b.Build()

	registry := mapping.NewRegistry(mapping.LocalMapping{})
	h, err := registry.Apply(p, 0)
	require.NoError(t, err)
	require.NotNil(t, h.Base)
	require.Equal(t, p, h.Base)
	require.Len(t, h.Base.Operators(), 1)
}
