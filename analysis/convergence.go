package analysis

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/optionlab/algorithm/sim"
	"github.com/wyfcoding/optionlab/algorithm/types"
	"github.com/wyfcoding/optionlab/tracing"
	"github.com/wyfcoding/optionlab/xerrors"
)

// ConvergencePoint 某一路径数下，一组种子的平均误差.
type ConvergencePoint struct {
	Paths         int
	Seeds         int
	MeanPrice     float64
	MeanAbsRelPct float64 // mean(|mc - bs| / bs) * 100
	MaxAbsRelPct  float64
	MeanStdError  float64
}

// Convergence 研究蒙特卡洛看涨价格随路径数的收敛.
// 种子族为 familySeed(Seed, 0..seeds-1)，每个路径数使用同一族种子.
// 欧式收益只依赖到期价格，精确解下单步即可，因此这里固定 Steps=1.
func (a *Analyzer) Convergence(ctx context.Context, counts []int, seeds int) ([]ConvergencePoint, error) {
	ctx, span := tracing.StartSpan(ctx, "analysis.Convergence")
	defer span.End()
	defer a.metrics.ObserveStage("convergence")()

	if len(counts) == 0 {
		return nil, xerrors.InvalidParameter("convergence_paths", counts)
	}
	for _, n := range counts {
		if n < 1 {
			return nil, xerrors.InvalidParameter("convergence_paths", n)
		}
	}
	if seeds < 1 {
		return nil, xerrors.InvalidParameter("convergence_seeds", seeds)
	}

	p := a.opts.Params
	bsCall, err := a.bs.Price(p, types.OptionTypeCall)
	if err != nil {
		return nil, err
	}
	if bsCall == 0 {
		return nil, xerrors.DegenerateResult("bs call price is 0")
	}

	workers := a.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := make([]ConvergencePoint, 0, len(counts))
	for _, n := range counts {
		prices := make([]float64, seeds)
		stdErrs := make([]float64, seeds)

		wp := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(workers)
		for i := range seeds {
			seed := familySeed(a.opts.Seed, i)
			wp.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				cfg := sim.PathConfig{Params: p, Steps: 1, Paths: n, Antithetic: a.opts.Antithetic, Workers: 1}
				_, ps, err := sim.GeneratePaths(cfg, sim.NewSource(seed))
				if err != nil {
					return xerrors.Wrap(err, xerrors.ErrInternal, fmt.Sprintf("generate paths n=%d seed=%d", n, seed))
				}
				est, err := sim.EstimateMonteCarlo(ps, p.Strike, p.Rate, p.Maturity, types.OptionTypeCall)
				if err != nil {
					return err
				}
				prices[i] = est.Price
				stdErrs[i] = est.StdError
				return nil
			})
		}
		if err := wp.Wait(); err != nil {
			tracing.SetError(ctx, err)
			return nil, err
		}
		a.metrics.AddPaths(n * seeds)

		relErrs := make([]float64, seeds)
		for i, price := range prices {
			relErrs[i] = 100 * math.Abs(price-bsCall) / bsCall
		}
		pt := ConvergencePoint{
			Paths:         n,
			Seeds:         seeds,
			MeanPrice:     stat.Mean(prices, nil),
			MeanAbsRelPct: stat.Mean(relErrs, nil),
			MaxAbsRelPct:  floats.Max(relErrs),
			MeanStdError:  stat.Mean(stdErrs, nil),
		}
		a.logger.DebugContext(ctx, "convergence point", "paths", n, "mean_abs_rel_pct", pt.MeanAbsRelPct)
		points = append(points, pt)
	}
	return points, nil
}

// familySeed 返回种子族中的第 i 个种子：Seed+i+1，按 2^64 回绕并跳过 0，
// 因为 0 会退化为时间熵，破坏可复现性.
func familySeed(base uint64, i int) uint64 {
	s := base + uint64(i) + 1
	if s <= base {
		s++
	}
	return s
}
