// Command optionlab 运行一次欧式期权定价分析：蒙特卡洛与 Black-Scholes 对比、希腊字母及收敛研究.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wyfcoding/optionlab/analysis"
	"github.com/wyfcoding/optionlab/bootstrap"
	"github.com/wyfcoding/optionlab/logging"
)

const serviceName = "optionlab"

// version 由构建时 -ldflags "-X main.version=..." 注入.
var version string

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("optionlab failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	convergence := fs.Bool("convergence", false, "run the convergence study after the analysis")
	serve := fs.Bool("serve", false, "keep serving metrics until interrupted")

	b := bootstrap.New(serviceName, version)
	b.RegisterFlags(fs)
	if err := b.Initialize(fs, args); err != nil {
		return err
	}
	defer b.Shutdown()

	m := b.SetupMetrics()
	b.SetupTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pricing := b.Config.Pricing
	a, err := analysis.NewAnalyzer(analysis.OptionsFromConfig(pricing), m, b.Logger)
	if err != nil {
		return err
	}

	done := logging.LogDuration(ctx, "pricing analysis", "paths", pricing.Paths, "steps", pricing.Steps)
	report, err := a.Run(ctx)
	if err != nil {
		return err
	}
	done()
	logReport(ctx, b.Logger, report)

	if *convergence {
		points, err := a.Convergence(ctx, pricing.ConvergencePaths, pricing.ConvergenceSeeds)
		if err != nil {
			return err
		}
		for _, pt := range points {
			b.Logger.InfoContext(ctx, "convergence",
				"paths", pt.Paths,
				"seeds", pt.Seeds,
				"mean_price", pt.MeanPrice,
				"mean_abs_rel_pct", pt.MeanAbsRelPct,
				"max_abs_rel_pct", pt.MaxAbsRelPct,
				"mean_std_error", pt.MeanStdError,
			)
		}
	}

	if *serve && b.Config.Metrics.Enabled {
		b.Logger.InfoContext(ctx, "serving metrics, press Ctrl+C to exit")
		<-ctx.Done()
	}
	return nil
}

func logReport(ctx context.Context, logger *logging.Logger, r *analysis.Report) {
	p := r.Options.Params
	logger.InfoContext(ctx, "option pricing report",
		slog.Group("params",
			"spot", p.Spot, "strike", p.Strike, "rate", p.Rate,
			"volatility", p.Volatility, "maturity", p.Maturity,
			"steps", r.Options.Steps, "paths", r.Options.Paths, "antithetic", r.Options.Antithetic,
		),
		legGroup("call", r.Call),
		legGroup("put", r.Put),
		"gamma", r.Gamma,
		"parity_gap", r.ParityGap,
		slog.Group("terminal",
			"mean", r.PathStats.Mean, "std_dev", r.PathStats.StdDev,
			"min", r.PathStats.Min, "max", r.PathStats.Max,
		),
		"display_paths", len(r.DisplayPaths),
		"gamma_points", len(r.GammaProfile),
	)
}

func legGroup(name string, leg analysis.Leg) slog.Attr {
	attrs := []any{
		"mc_price", leg.MonteCarlo.Price,
		"mc_std_error", leg.MonteCarlo.StdError,
		"mc_ci_lower", leg.MonteCarlo.Lower,
		"mc_ci_upper", leg.MonteCarlo.Upper,
		"bs_price", leg.Analytical.Price,
		"delta", leg.Analytical.Delta,
		"vega", leg.Analytical.Vega,
		"theta", leg.Analytical.Theta,
		"rho", leg.Analytical.Rho,
		"hedge", leg.Hedge.Side + " " + leg.Hedge.Shares.String() + " shares",
	}
	if leg.Comparison != nil {
		attrs = append(attrs,
			"diff", leg.Comparison.Diff,
			"relative_pct", leg.Comparison.RelativePct,
		)
	}
	return slog.Group(name, attrs...)
}
