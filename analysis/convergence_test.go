package analysis

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionlab/xerrors"
)

func TestConvergenceImproves(t *testing.T) {
	opts := testOptions()
	opts.Seed = 0
	a, err := NewAnalyzer(opts, nil, quietLogger())
	require.NoError(t, err)

	points, err := a.Convergence(context.Background(), []int{500, 50000}, 20)
	require.NoError(t, err)
	require.Len(t, points, 2)

	small, large := points[0], points[1]
	assert.Equal(t, 500, small.Paths)
	assert.Equal(t, 20, small.Seeds)
	assert.Less(t, large.MeanAbsRelPct, small.MeanAbsRelPct)
	assert.Less(t, large.MeanAbsRelPct, 1.0)
	assert.Less(t, large.MeanStdError, small.MeanStdError)
	assert.GreaterOrEqual(t, large.MaxAbsRelPct, large.MeanAbsRelPct)
	assert.InDelta(t, 10.4506, large.MeanPrice, 0.1)
}

func TestConvergenceDeterministic(t *testing.T) {
	a, err := NewAnalyzer(testOptions(), nil, quietLogger())
	require.NoError(t, err)

	p1, err := a.Convergence(context.Background(), []int{1000}, 4)
	require.NoError(t, err)
	p2, err := a.Convergence(context.Background(), []int{1000}, 4)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestConvergenceInvalid(t *testing.T) {
	a, err := NewAnalyzer(testOptions(), nil, quietLogger())
	require.NoError(t, err)

	_, err = a.Convergence(context.Background(), nil, 5)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
	_, err = a.Convergence(context.Background(), []int{100, 0}, 5)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
	_, err = a.Convergence(context.Background(), []int{100}, 0)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
}

func TestConvergenceCancelled(t *testing.T) {
	a, err := NewAnalyzer(testOptions(), nil, quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Convergence(ctx, []int{1000}, 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvergenceDegenerate(t *testing.T) {
	opts := testOptions()
	opts.Params.Strike = 1e6
	a, err := NewAnalyzer(opts, nil, quietLogger())
	require.NoError(t, err)

	_, err = a.Convergence(context.Background(), []int{100}, 2)
	assert.ErrorIs(t, err, xerrors.ErrDegenerateResult)
}

func TestFamilySeedSkipsZero(t *testing.T) {
	assert.Equal(t, uint64(1), familySeed(0, 0))
	assert.Equal(t, uint64(8), familySeed(7, 0))
	assert.Equal(t, uint64(math.MaxUint64), familySeed(math.MaxUint64-1, 0))
	assert.Equal(t, uint64(1), familySeed(math.MaxUint64-1, 1))
	assert.Equal(t, uint64(1), familySeed(math.MaxUint64, 0))
	assert.Equal(t, uint64(2), familySeed(math.MaxUint64, 1))

	seen := map[uint64]bool{}
	for i := range 8 {
		s := familySeed(math.MaxUint64-3, i)
		assert.NotZero(t, s)
		assert.False(t, seen[s], "duplicate seed %d", s)
		seen[s] = true
	}
}

func TestConvergenceDeterministicNearMaxSeed(t *testing.T) {
	opts := testOptions()
	opts.Seed = math.MaxUint64 - 1
	a, err := NewAnalyzer(opts, nil, quietLogger())
	require.NoError(t, err)

	p1, err := a.Convergence(context.Background(), []int{500}, 4)
	require.NoError(t, err)
	p2, err := a.Convergence(context.Background(), []int{500}, 4)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
