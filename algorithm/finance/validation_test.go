package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionlab/xerrors"
)

func TestCompare(t *testing.T) {
	cmp, err := Compare(10.5, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 10.5, cmp.MonteCarlo)
	assert.Equal(t, 10.0, cmp.Analytical)
	assert.InDelta(t, 0.5, cmp.Diff, 1e-12)
	assert.InDelta(t, 0.5, cmp.Absolute, 1e-12)
	assert.InDelta(t, 5.0, cmp.RelativePct, 1e-12)

	cmp, err = Compare(9.0, 10.0)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, cmp.Diff, 1e-12)
	assert.InDelta(t, 1.0, cmp.Absolute, 1e-12)
	assert.InDelta(t, -10.0, cmp.RelativePct, 1e-12)
}

func TestCompareZeroReference(t *testing.T) {
	cmp, err := Compare(0, 0)
	assert.ErrorIs(t, err, xerrors.ErrDegenerateResult)
	assert.Equal(t, Comparison{}, cmp)

	_, err = Compare(0.3, 0)
	assert.ErrorIs(t, err, xerrors.ErrDegenerateResult)

	// 次正规的解析价：相对误差溢出为 +Inf.
	cmp, err = Compare(1.0, 5e-324)
	assert.ErrorIs(t, err, xerrors.ErrDegenerateResult)
	assert.Equal(t, Comparison{}, cmp)
}

func TestCompareRejectsNonFinite(t *testing.T) {
	for _, tc := range []struct{ mc, bs float64 }{
		{math.NaN(), 1},
		{1, math.Inf(1)},
		{-1, 1},
		{1, -2},
	} {
		_, err := Compare(tc.mc, tc.bs)
		assert.ErrorIs(t, err, xerrors.ErrInvalidParameter, "mc=%v bs=%v", tc.mc, tc.bs)
		assert.NotErrorIs(t, err, xerrors.ErrDegenerateResult)
	}
}
