// Package bootstrap 负责命令行入口的通用基础设施初始化.
package bootstrap

import (
	"context"
	"flag"
	"sync/atomic"

	"github.com/wyfcoding/optionlab/config"
	"github.com/wyfcoding/optionlab/logging"
	"github.com/wyfcoding/optionlab/metrics"
	"github.com/wyfcoding/optionlab/tracing"
)

// Bootstrapper 处理通用基础设施的初始化
type Bootstrapper struct {
	ServiceName string
	Version     string
	Logger      *logging.Logger
	Config      *config.Config
	Metrics     *metrics.Metrics

	configPath string
	current    atomic.Pointer[config.Config]
	cleanups   []func()
}

// New 创建一个新的引导器实例
func New(serviceName, version string) *Bootstrapper {
	return &Bootstrapper{
		ServiceName: serviceName,
		Version:     version,
	}
}

// RegisterFlags 在 fs 上注册引导器需要的命令行参数.
func (b *Bootstrapper) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&b.configPath, "config", "configs/config.toml", "path to config file, empty for defaults and env only")
}

// Initialize 解析命令行参数、加载配置文件，并按配置重新初始化日志系统。
func (b *Bootstrapper) Initialize(fs *flag.FlagSet, args []string) error {
	if fs.Lookup("config") == nil {
		b.RegisterFlags(fs)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 1. 临时 Logger，记录配置加载过程中的错误。
	logging.InitLogger(logging.Config{Service: b.ServiceName, Module: "bootstrap", Level: "info"})
	b.Logger = logging.Default()

	// 2. 加载配置：默认值 < TOML 文件 < 环境变量。
	cfg := new(config.Config)
	if err := config.Load(b.configPath, cfg); err != nil {
		b.Logger.Error("failed to load config", "path", b.configPath, "error", err)
		return err
	}
	if b.Version != "" {
		cfg.Version = b.Version
	}
	b.Config = cfg
	b.current.Store(cfg)
	if b.configPath != "" {
		config.RegisterReloadHook(b.onConfigReload)
	}

	// 3. 按配置二次初始化 Logger。
	b.Logger = logging.ReplaceDefault(logging.Config{
		Service:    b.ServiceName,
		Module:     "main",
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Stdout:     cfg.Log.Stdout,
	})
	config.PrintWithMask(cfg)

	return nil
}

// Current 返回最近一次生效的配置；文件热更新后与 Config 不同.
func (b *Bootstrapper) Current() *config.Config {
	if c := b.current.Load(); c != nil {
		return c
	}
	return b.Config
}

// onConfigReload 保存热更新后的配置。正在进行的定价不受影响，新参数从下一次运行开始生效.
func (b *Bootstrapper) onConfigReload(next *config.Config) {
	if b.Version != "" {
		next.Version = b.Version
	}
	b.current.Store(next)
	b.Logger.Info("pricing config reloaded, applies to next run",
		"paths", next.Pricing.Paths,
		"steps", next.Pricing.Steps,
		"log_level", next.Log.Level)
}

// SetupMetrics 创建指标注册表，配置启用时同时暴露 HTTP 端点.
func (b *Bootstrapper) SetupMetrics() *metrics.Metrics {
	m := metrics.NewMetrics(b.ServiceName)
	m.RegisterBuildInfo(b.ServiceName, b.Config.Version)
	b.Metrics = m

	if b.Config.Metrics.Enabled {
		stop := m.ExposeHttp(b.Config.Metrics.Port, b.Config.Metrics.Path)
		b.cleanups = append(b.cleanups, stop)
		b.Logger.Info("metrics endpoint exposed", "port", b.Config.Metrics.Port, "path", b.Config.Metrics.Path)
	}
	return m
}

// SetupTracing 初始化 OpenTelemetry 追踪器
func (b *Bootstrapper) SetupTracing() {
	cfg := b.Config.Tracing
	if cfg.ServiceName == "" {
		cfg.ServiceName = b.ServiceName
	}
	shutdown, err := tracing.InitTracer(cfg)
	if err != nil {
		b.Logger.Error("failed to init tracer", "error", err)
		return
	}
	b.cleanups = append(b.cleanups, func() {
		if err := shutdown(context.Background()); err != nil {
			b.Logger.Error("failed to shutdown tracer", "error", err)
		}
	})
}

// Shutdown 按注册的逆序释放资源.
func (b *Bootstrapper) Shutdown() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
	b.cleanups = nil
}
