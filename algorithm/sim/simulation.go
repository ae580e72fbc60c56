// Package sim - 几何布朗运动路径模拟与蒙特卡洛定价.
package sim

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/optionlab/algorithm/types"
	"github.com/wyfcoding/optionlab/xerrors"
)

// 少于该路径数时不值得启动并行映射.
const parallelThreshold = 100

// PathConfig 路径生成参数.
type PathConfig struct {
	Params     types.Params
	Steps      int  // 每条路径的时间步数.
	Paths      int  // 请求的路径条数.
	Antithetic bool // 是否使用对偶变量.
	Workers    int  // 并行映射的协程上限，<=0 时取 GOMAXPROCS.
}

// Validate 在任何采样或分配之前校验参数.
func (c PathConfig) Validate() error {
	if c.Steps < 1 {
		return xerrors.InvalidParameter("steps", c.Steps)
	}
	if c.Paths < 1 {
		return xerrors.InvalidParameter("paths", c.Paths)
	}
	return c.Params.Validate()
}

// TimeGrid 时间网格，steps+1 个点，从 0 到 T 等距.
type TimeGrid []float64

// NewTimeGrid 创建时间网格，末点精确等于 maturity.
func NewTimeGrid(maturity float64, steps int) TimeGrid {
	grid := make(TimeGrid, steps+1)
	dt := maturity / float64(steps)
	for i := range grid {
		grid[i] = float64(i) * dt
	}
	grid[steps] = maturity
	return grid
}

// PathSet 路径矩阵，行为一条轨迹，列对应时间网格.
// 底层为一块连续内存，按行存储. 生成后只读.
type PathSet struct {
	data  []float64
	rows  int
	cols  int
	pairs int
}

// Rows 路径条数.
func (ps *PathSet) Rows() int { return ps.rows }

// Cols 每条路径的点数 (steps+1).
func (ps *PathSet) Cols() int { return ps.cols }

// Row 返回第 i 条路径的视图，调用方不得修改.
func (ps *PathSet) Row(i int) []float64 {
	return ps.data[i*ps.cols : (i+1)*ps.cols : (i+1)*ps.cols]
}

// At 返回第 i 条路径在第 j 个时间点的价格.
func (ps *PathSet) At(i, j int) float64 { return ps.data[i*ps.cols+j] }

// Terminal 返回所有路径的到期价格副本.
func (ps *PathSet) Terminal() []float64 {
	out := make([]float64, ps.rows)
	for i := range out {
		out[i] = ps.data[(i+1)*ps.cols-1]
	}
	return out
}

// Antithetic 是否包含对偶路径对.
func (ps *PathSet) Antithetic() bool { return ps.pairs > 0 }

// Pairs 对偶路径对数. 第 k 对位于第 2k 与 2k+1 行，其余行为独立路径.
func (ps *PathSet) Pairs() int { return ps.pairs }

// NewSource 创建可复现的随机源. seed 为 0 时使用当前时间作为熵.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewSource(seed)
}

// GeneratePaths 按几何布朗运动的精确解生成路径.
//
// 对偶模式下生成 Paths/2 条基础布朗路径，每条同时输出 W 与 -W 两条轨迹；
// Paths 为奇数时末行追加一条独立路径，因此行数总等于 Paths.
// 随机数按行序从 src 顺序抽取，相同种子的输出与 Workers 无关.
func GeneratePaths(cfg PathConfig, src rand.Source) (TimeGrid, *PathSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if src == nil {
		src = NewSource(0)
	}

	p := cfg.Params
	grid := NewTimeGrid(p.Maturity, cfg.Steps)
	ps := &PathSet{
		rows: cfg.Paths,
		cols: cfg.Steps + 1,
		data: make([]float64, cfg.Paths*(cfg.Steps+1)),
	}
	if cfg.Antithetic {
		ps.pairs = cfg.Paths / 2
	}

	// 基础路径所在行：对偶对取偶数行，其后为独立路径.
	base := make([]int, 0, ps.rows-ps.pairs)
	for k := range ps.pairs {
		base = append(base, 2*k)
	}
	for r := 2 * ps.pairs; r < ps.rows; r++ {
		base = append(base, r)
	}

	// 顺序抽取噪声，暂存在各基础行的 1..steps 列.
	rng := rand.New(src)
	for _, r := range base {
		row := ps.data[r*ps.cols : (r+1)*ps.cols]
		for j := 1; j < ps.cols; j++ {
			row[j] = rng.NormFloat64()
		}
	}

	m := newGBMMapper(p, grid)
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if len(base) < parallelThreshold || workers == 1 {
		for _, r := range base {
			if err := m.mapRow(ps, r); err != nil {
				return nil, nil, err
			}
		}
		return grid, ps, nil
	}

	// 按块分发，避免每条路径一个协程.
	chunk := (len(base) + workers - 1) / workers
	wp := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(workers)
	for lo := 0; lo < len(base); lo += chunk {
		hi := min(lo+chunk, len(base))
		rows := base[lo:hi]
		wp.Go(func() error {
			for _, r := range rows {
				if err := m.mapRow(ps, r); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, nil, err
	}

	return grid, ps, nil
}

// gbmMapper 把标准正态增量映射为 S(t) = S0·exp((r-σ²/2)t + σW(t)).
type gbmMapper struct {
	drift  []float64 // (r-σ²/2)·t_j
	spot   float64
	vol    float64
	sqrtDt float64
}

func newGBMMapper(p types.Params, grid TimeGrid) *gbmMapper {
	mu := p.Rate - 0.5*p.Volatility*p.Volatility
	drift := make([]float64, len(grid))
	floats.ScaleTo(drift, mu, grid)
	return &gbmMapper{
		drift:  drift,
		spot:   p.Spot,
		vol:    p.Volatility,
		sqrtDt: math.Sqrt(p.Maturity / float64(len(grid)-1)),
	}
}

// mapRow 就地把第 r 行的噪声变换为价格路径；若该行属于对偶对，同时写出镜像行.
// 参数极端（如 rT 很大）时 exp 会溢出，此时返回 ErrDegenerateResult.
func (m *gbmMapper) mapRow(ps *PathSet, r int) error {
	row := ps.data[r*ps.cols : (r+1)*ps.cols]
	w := row[1:]
	floats.CumSum(w, w)
	floats.Scale(m.sqrtDt, w)

	var mirror []float64
	if r < 2*ps.pairs {
		mirror = ps.data[(r+1)*ps.cols : (r+2)*ps.cols]
		mirror[0] = m.spot
	}
	row[0] = m.spot
	for j := 1; j < len(row); j++ {
		wj := row[j]
		row[j] = m.spot * math.Exp(m.drift[j]+m.vol*wj)
		if mirror != nil {
			mirror[j] = m.spot * math.Exp(m.drift[j]-m.vol*wj)
		}
	}
	if !allFinite(row) || !allFinite(mirror) {
		return xerrors.DegenerateResult(fmt.Sprintf("path %d overflows float64", r))
	}
	return nil
}

func allFinite(s []float64) bool {
	for _, v := range s {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// PathStatistics 到期价格的统计摘要.
type PathStatistics struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// CalculatePathStatistics 计算到期价格统计.
func CalculatePathStatistics(ps *PathSet) (PathStatistics, error) {
	if ps == nil || ps.rows == 0 {
		return PathStatistics{}, xerrors.InvalidParameter("paths", 0)
	}
	terminal := ps.Terminal()
	mean, std := stat.MeanStdDev(terminal, nil)
	if ps.rows == 1 {
		std = 0
	}
	return PathStatistics{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(terminal),
		Max:    floats.Max(terminal),
	}, nil
}
