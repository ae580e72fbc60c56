package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/optionlab/algorithm/types"
	"github.com/wyfcoding/optionlab/xerrors"
)

var textbook = types.Params{Spot: 100, Strike: 100, Rate: 0.05, Volatility: 0.2, Maturity: 1}

func TestNewTimeGrid(t *testing.T) {
	grid := NewTimeGrid(1.0, 252)
	require.Len(t, grid, 253)
	assert.Equal(t, 0.0, grid[0])
	assert.Equal(t, 1.0, grid[252])
	for i := 1; i < len(grid); i++ {
		assert.Greater(t, grid[i], grid[i-1])
	}

	single := NewTimeGrid(0.5, 1)
	assert.Equal(t, TimeGrid{0, 0.5}, single)
}

func TestGeneratePathsShape(t *testing.T) {
	for _, antithetic := range []bool{false, true} {
		cfg := PathConfig{Params: textbook, Steps: 12, Paths: 40, Antithetic: antithetic}
		grid, ps, err := GeneratePaths(cfg, NewSource(1))
		require.NoError(t, err)

		assert.Len(t, grid, 13)
		assert.Equal(t, 40, ps.Rows())
		assert.Equal(t, 13, ps.Cols())
		assert.Equal(t, antithetic, ps.Antithetic())
		for i := range ps.Rows() {
			row := ps.Row(i)
			assert.Equal(t, textbook.Spot, row[0], "row %d must start at S0", i)
			for _, v := range row {
				assert.Greater(t, v, 0.0)
				assert.False(t, math.IsInf(v, 0))
			}
		}
	}
}

func TestGeneratePathsAntitheticMirror(t *testing.T) {
	cfg := PathConfig{Params: textbook, Steps: 50, Paths: 2, Antithetic: true}
	grid, ps, err := GeneratePaths(cfg, NewSource(42))
	require.NoError(t, err)
	require.Equal(t, 2, ps.Rows())
	require.Equal(t, 1, ps.Pairs())

	mu := textbook.Rate - 0.5*textbook.Volatility*textbook.Volatility
	last := ps.Cols() - 1
	// 去掉漂移后的对数收益互为相反数.
	a := math.Log(ps.At(0, last)/textbook.Spot) - mu*grid[last]
	b := math.Log(ps.At(1, last)/textbook.Spot) - mu*grid[last]
	assert.InDelta(t, -a, b, 1e-12)

	// 每个时间点都成立.
	for j := 1; j <= last; j++ {
		x := math.Log(ps.At(0, j)/textbook.Spot) - mu*grid[j]
		y := math.Log(ps.At(1, j)/textbook.Spot) - mu*grid[j]
		assert.InDelta(t, -x, y, 1e-12)
	}
}

func TestGeneratePathsOddAntithetic(t *testing.T) {
	cfg := PathConfig{Params: textbook, Steps: 10, Paths: 7, Antithetic: true}
	_, ps, err := GeneratePaths(cfg, NewSource(3))
	require.NoError(t, err)

	assert.Equal(t, 7, ps.Rows())
	assert.Equal(t, 3, ps.Pairs())
	assert.Equal(t, textbook.Spot, ps.At(6, 0))

	// 补充的独立路径不是任何一行的镜像.
	mu := textbook.Rate - 0.5*textbook.Volatility*textbook.Volatility
	extra := math.Log(ps.At(6, 10)/textbook.Spot) - mu
	for i := range 6 {
		other := math.Log(ps.At(i, 10)/textbook.Spot) - mu
		assert.NotEqual(t, -other, extra)
	}
}

func TestGeneratePathsDeterministic(t *testing.T) {
	cfg := PathConfig{Params: textbook, Steps: 30, Paths: 1000, Antithetic: true, Workers: 1}
	_, serial, err := GeneratePaths(cfg, NewSource(99))
	require.NoError(t, err)

	cfg.Workers = 8
	_, parallel, err := GeneratePaths(cfg, NewSource(99))
	require.NoError(t, err)

	assert.Equal(t, serial.data, parallel.data, "worker count must not change output")

	_, other, err := GeneratePaths(cfg, NewSource(100))
	require.NoError(t, err)
	assert.NotEqual(t, serial.data, other.data)
}

func TestGeneratePathsTerminalDistribution(t *testing.T) {
	// 精确解下 E[S_T] = S0·e^{rT}.
	cfg := PathConfig{Params: textbook, Steps: 4, Paths: 100000}
	_, ps, err := GeneratePaths(cfg, NewSource(5))
	require.NoError(t, err)

	st, err := CalculatePathStatistics(ps)
	require.NoError(t, err)
	want := textbook.Spot * math.Exp(textbook.Rate*textbook.Maturity)
	assert.InDelta(t, want, st.Mean, 0.5)
	assert.Less(t, st.Min, st.Mean)
	assert.Greater(t, st.Max, st.Mean)
	// Var[S_T] = S0²e^{2rT}(e^{σ²T}-1)
	wantStd := want * math.Sqrt(math.Expm1(textbook.Volatility*textbook.Volatility))
	assert.InEpsilon(t, wantStd, st.StdDev, 0.03)
}

func TestGeneratePathsInvalid(t *testing.T) {
	zeroVol := textbook
	zeroVol.Volatility = 0
	zeroT := textbook
	zeroT.Maturity = 0

	cases := map[string]PathConfig{
		"zero volatility": {Params: zeroVol, Steps: 10, Paths: 10},
		"zero maturity":   {Params: zeroT, Steps: 10, Paths: 10},
		"zero steps":      {Params: textbook, Steps: 0, Paths: 10},
		"zero paths":      {Params: textbook, Steps: 10, Paths: 0, Antithetic: true},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			grid, ps, err := GeneratePaths(cfg, NewSource(1))
			assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
			assert.Nil(t, grid)
			assert.Nil(t, ps)
		})
	}
}

func TestGeneratePathsNilSource(t *testing.T) {
	_, ps, err := GeneratePaths(PathConfig{Params: textbook, Steps: 5, Paths: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, ps.Rows())
}

func TestCalculatePathStatisticsEmpty(t *testing.T) {
	_, err := CalculatePathStatistics(nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidParameter)
}

func TestSamplePaths(t *testing.T) {
	_, ps, err := GeneratePaths(PathConfig{Params: textbook, Steps: 5, Paths: 500}, NewSource(8))
	require.NoError(t, err)

	idx := SamplePaths(ps, 20, NewSource(2))
	require.Len(t, idx, 20)
	seen := map[int]bool{}
	for i, v := range idx {
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 500)
		assert.False(t, seen[v], "duplicate index %d", v)
		seen[v] = true
		if i > 0 {
			assert.Greater(t, v, idx[i-1])
		}
	}
	assert.Equal(t, idx, SamplePaths(ps, 20, NewSource(2)))

	all := SamplePaths(ps, 1000, NewSource(2))
	assert.Len(t, all, 500)
	assert.Nil(t, SamplePaths(ps, 0, nil))
}

func TestReservoirSamplerReset(t *testing.T) {
	rs := NewReservoirSampler[string](2, NewSource(1))
	for _, s := range []string{"a", "b", "c", "d"} {
		rs.Observe(s)
	}
	assert.Len(t, rs.Samples(), 2)
	assert.Equal(t, 4, rs.Count())

	rs.Reset()
	assert.Empty(t, rs.Samples())
	assert.Equal(t, 0, rs.Count())
}

func TestGeneratePathsOverflowIsDegenerate(t *testing.T) {
	huge := textbook
	huge.Rate = 800

	for _, cfg := range []PathConfig{
		{Params: huge, Steps: 1, Paths: 4},
		{Params: huge, Steps: 3, Paths: 1000, Antithetic: true, Workers: 4},
	} {
		grid, ps, err := GeneratePaths(cfg, NewSource(1))
		assert.ErrorIs(t, err, xerrors.ErrDegenerateResult)
		assert.NotErrorIs(t, err, xerrors.ErrInvalidParameter)
		assert.Nil(t, grid)
		assert.Nil(t, ps)
	}
}
