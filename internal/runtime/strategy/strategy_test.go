package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
)

type clusterRequest struct {
	forUpdate bool
	items     int
}

func TestResolveReturnsFirstMatch(t *testing.T) {
	var evaluated []string
	probe := func(name string, result bool) func(clusterRequest) bool {
		return func(clusterRequest) bool {
			evaluated = append(evaluated, name)
			return result
		}
	}
	r, err := NewResolver(
		Evaluator[clusterRequest, string]{Supports: probe("a", false), Strategy: "A"},
		Evaluator[clusterRequest, string]{Supports: probe("b", true), Strategy: "B"},
		Evaluator[clusterRequest, string]{Supports: probe("c", true), Strategy: "C"},
	)
	require.NoError(t, err)

	s, ok := r.Resolve(clusterRequest{})
	assert.True(t, ok)
	assert.Equal(t, "B", s)
	assert.Equal(t, []string{"a", "b"}, evaluated, "evaluation stops at the first match")
}

func TestResolveReportsAbsence(t *testing.T) {
	r, err := NewResolver(
		Evaluator[clusterRequest, string]{Supports: func(c clusterRequest) bool { return c.forUpdate }, Strategy: "items"},
	)
	require.NoError(t, err)

	s, ok := r.Resolve(clusterRequest{})
	assert.False(t, ok)
	assert.Empty(t, s)
	assert.Equal(t, "launch", r.ResolveOr(clusterRequest{}, "launch"))
}

func TestEmptyResolverNeverMatches(t *testing.T) {
	r, err := NewResolver[clusterRequest, int]()
	require.NoError(t, err)
	_, ok := r.Resolve(clusterRequest{forUpdate: true})
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestResolverRejectsMissingPredicate(t *testing.T) {
	_, err := NewResolver(Evaluator[clusterRequest, string]{Strategy: "x"})
	assert.ErrorIs(t, err, errspkg.ErrEvaluatorRequired)

	assert.Panics(t, func() {
		MustResolver(Evaluator[clusterRequest, string]{Strategy: "x"})
	})
}

func TestResolverCopiesEvaluators(t *testing.T) {
	evals := []Evaluator[clusterRequest, string]{
		{Supports: func(c clusterRequest) bool { return c.items > 0 }, Strategy: "items"},
	}
	r := MustResolver(evals...)
	evals[0].Strategy = "mutated"

	s, ok := r.Resolve(clusterRequest{items: 2})
	assert.True(t, ok)
	assert.Equal(t, "items", s)
}
