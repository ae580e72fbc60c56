// Package analysis 把路径模拟、解析定价与交叉验证串成一次完整的定价分析.
package analysis

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/optionlab/algorithm/finance"
	"github.com/wyfcoding/optionlab/algorithm/sim"
	"github.com/wyfcoding/optionlab/algorithm/types"
	"github.com/wyfcoding/optionlab/config"
	"github.com/wyfcoding/optionlab/logging"
	"github.com/wyfcoding/optionlab/metrics"
	"github.com/wyfcoding/optionlab/tracing"
	"github.com/wyfcoding/optionlab/xerrors"
)

// HedgeContracts 对冲分析按 100 份合约计算所需股数.
const HedgeContracts = 100

// Options 一次分析的全部输入.
type Options struct {
	Params       types.Params
	Steps        int
	Paths        int
	Antithetic   bool
	Seed         uint64 // 0 表示使用时间熵
	Workers      int
	DisplayPaths int
	GammaPoints  int
	GammaLow     float64 // 相对 S0 的倍数
	GammaHigh    float64
}

// OptionsFromConfig 从配置构造分析参数.
func OptionsFromConfig(c config.PricingConfig) Options {
	return Options{
		Params: types.Params{
			Spot:       c.Spot,
			Strike:     c.Strike,
			Rate:       c.Rate,
			Volatility: c.Volatility,
			Maturity:   c.Maturity,
		},
		Steps:        c.Steps,
		Paths:        c.Paths,
		Antithetic:   c.Antithetic,
		Seed:         c.Seed,
		Workers:      c.Workers,
		DisplayPaths: c.DisplayPaths,
		GammaPoints:  c.GammaPoints,
		GammaLow:     c.GammaLow,
		GammaHigh:    c.GammaHigh,
	}
}

func (o Options) pathConfig() sim.PathConfig {
	return sim.PathConfig{
		Params:     o.Params,
		Steps:      o.Steps,
		Paths:      o.Paths,
		Antithetic: o.Antithetic,
		Workers:    o.Workers,
	}
}

// Validate 校验分析参数.
func (o Options) Validate() error {
	if err := o.pathConfig().Validate(); err != nil {
		return err
	}
	if o.DisplayPaths < 0 {
		return xerrors.InvalidParameter("display_paths", o.DisplayPaths)
	}
	if o.GammaPoints < 2 {
		return xerrors.InvalidParameter("gamma_points", o.GammaPoints)
	}
	if !(o.GammaLow > 0) || !(o.GammaHigh > o.GammaLow) || math.IsInf(o.GammaHigh, 0) {
		return xerrors.InvalidParameter("gamma_range", [2]float64{o.GammaLow, o.GammaHigh})
	}
	return nil
}

// Hedge 对冲 HedgeContracts 份合约所需的标的头寸.
type Hedge struct {
	Contracts int
	Side      string // short 或 long
	Shares    decimal.Decimal
}

// Leg 单个期权类型的定价结果.
type Leg struct {
	Type       types.OptionType
	MonteCarlo sim.Estimate
	Analytical *finance.BlackScholesResult
	// Comparison 为 nil 表示解析价为 0，相对误差无定义.
	Comparison *finance.Comparison
	Hedge      Hedge
}

// GammaPoint Gamma 曲线上的一个点.
type GammaPoint struct {
	Spot  float64
	Gamma float64
}

// DisplayPath 抽样展示用的一条路径.
type DisplayPath struct {
	Index  int
	Prices []float64
}

// Report 一次分析的完整结果.
type Report struct {
	Options      Options
	Call         Leg
	Put          Leg
	Gamma        float64
	ParityGap    float64
	GammaProfile []GammaPoint
	Grid         sim.TimeGrid
	DisplayPaths []DisplayPath
	PathStats    sim.PathStatistics
	Elapsed      time.Duration
}

// Analyzer 定价分析器.
type Analyzer struct {
	opts    Options
	bs      *finance.BlackScholesCalculator
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewAnalyzer 创建分析器. m 与 logger 可为 nil.
func NewAnalyzer(opts Options, m *metrics.Metrics, logger *logging.Logger) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{
		opts:    opts,
		bs:      finance.NewBlackScholesCalculator(),
		metrics: m,
		logger:  logger,
	}, nil
}

// Run 生成路径，计算蒙特卡洛与解析价格、希腊字母，并给出对比结果.
func (a *Analyzer) Run(ctx context.Context) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "analysis.Run")
	defer span.End()
	start := time.Now()

	tracing.AddTag(ctx, "paths", a.opts.Paths)
	tracing.AddTag(ctx, "steps", a.opts.Steps)
	tracing.AddTag(ctx, "antithetic", a.opts.Antithetic)

	grid, ps, err := a.simulate(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	report := &Report{Options: a.opts, Grid: grid}
	if report.Call, err = a.price(ctx, ps, types.OptionTypeCall); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if report.Put, err = a.price(ctx, ps, types.OptionTypePut); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	if err := a.greeks(ctx, report); err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}

	report.PathStats, err = sim.CalculatePathStatistics(ps)
	if err != nil {
		return nil, err
	}
	report.DisplayPaths = a.display(ps)
	report.Elapsed = time.Since(start)

	a.logger.InfoContext(ctx, "pricing analysis finished",
		"mc_call", report.Call.MonteCarlo.Price,
		"bs_call", report.Call.Analytical.Price,
		"mc_put", report.Put.MonteCarlo.Price,
		"bs_put", report.Put.Analytical.Price,
		"elapsed", report.Elapsed,
	)
	return report, nil
}

func (a *Analyzer) simulate(ctx context.Context) (sim.TimeGrid, *sim.PathSet, error) {
	_, span := tracing.StartSpan(ctx, "analysis.simulate")
	defer span.End()
	defer a.metrics.ObserveStage("simulate")()

	grid, ps, err := sim.GeneratePaths(a.opts.pathConfig(), sim.NewSource(a.opts.Seed))
	if err != nil {
		return nil, nil, xerrors.Wrap(err, xerrors.ErrInternal, "generate paths")
	}
	a.metrics.AddPaths(ps.Rows())
	a.logger.DebugContext(ctx, "paths generated", "rows", ps.Rows(), "cols", ps.Cols(), "pairs", ps.Pairs())
	return grid, ps, nil
}

func (a *Analyzer) price(ctx context.Context, ps *sim.PathSet, typ types.OptionType) (Leg, error) {
	ctx, span := tracing.StartSpan(ctx, "analysis.price")
	defer span.End()
	tracing.AddTag(ctx, "option_type", typ.String())

	p := a.opts.Params
	leg := Leg{Type: typ}

	done := a.metrics.ObserveStage("monte_carlo")
	est, err := sim.EstimateMonteCarlo(ps, p.Strike, p.Rate, p.Maturity, typ)
	done()
	a.metrics.RecordPricing("monte_carlo", typ.String(), err)
	if err != nil {
		return Leg{}, err
	}
	leg.MonteCarlo = est

	done = a.metrics.ObserveStage("black_scholes")
	res, err := a.bs.Calculate(p, typ)
	done()
	a.metrics.RecordPricing("black_scholes", typ.String(), err)
	if err != nil {
		return Leg{}, err
	}
	leg.Analytical = res
	leg.Hedge = hedgeFor(res.Delta)

	cmp, err := finance.Compare(est.Price, res.Price)
	switch {
	case err == nil:
		leg.Comparison = &cmp
		a.metrics.RecordRelativeError(typ.String(), cmp.RelativePct)
	case errors.Is(err, xerrors.ErrDegenerateResult):
		a.logger.WarnContext(ctx, "relative error undefined", "option_type", typ.String(), "error", err)
	default:
		return Leg{}, err
	}
	return leg, nil
}

func (a *Analyzer) greeks(ctx context.Context, report *Report) error {
	_, span := tracing.StartSpan(ctx, "analysis.greeks")
	defer span.End()
	defer a.metrics.ObserveStage("greeks")()

	p := a.opts.Params
	report.Gamma = report.Call.Analytical.Gamma

	gap, err := a.bs.ParityGap(p)
	if err != nil {
		return err
	}
	report.ParityGap = gap

	spots, gammas, err := a.bs.GammaProfile(p, a.opts.GammaLow*p.Spot, a.opts.GammaHigh*p.Spot, a.opts.GammaPoints)
	if err != nil {
		return err
	}
	report.GammaProfile = make([]GammaPoint, len(spots))
	for i := range spots {
		report.GammaProfile[i] = GammaPoint{Spot: spots[i], Gamma: gammas[i]}
	}
	return nil
}

// display 抽样展示路径，种子与模拟种子错开，保证同一配置下结果稳定.
func (a *Analyzer) display(ps *sim.PathSet) []DisplayPath {
	if a.opts.DisplayPaths == 0 {
		return nil
	}
	var seed uint64
	if a.opts.Seed != 0 {
		seed = familySeed(a.opts.Seed, 0)
	}
	idx := sim.SamplePaths(ps, a.opts.DisplayPaths, sim.NewSource(seed))
	out := make([]DisplayPath, len(idx))
	for i, r := range idx {
		out[i] = DisplayPath{Index: r, Prices: append([]float64(nil), ps.Row(r)...)}
	}
	return out
}

// hedgeFor 按 Delta 计算对冲头寸：多头看涨需做空标的，多头看跌需做多标的.
func hedgeFor(delta float64) Hedge {
	side := "short"
	if delta < 0 {
		side = "long"
	}
	shares := decimal.NewFromFloat(math.Abs(delta)).Mul(decimal.NewFromInt(HedgeContracts)).Round(0)
	return Hedge{Contracts: HedgeContracts, Side: side, Shares: shares}
}
