// Package metrics 提供基于 Prometheus 的定价指标采集.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了基于 Prometheus 的指标采集注册表及定价相关的标准指标。
type Metrics struct {
	registry *prometheus.Registry // 内部独立的 Prometheus 注册中心

	PricingRunsTotal    *prometheus.CounterVec   // 定价次数 (维度: method, option_type, status)
	StageDuration       *prometheus.HistogramVec // 各阶段耗时分布 (维度: stage)
	RelativeError       *prometheus.GaugeVec     // 蒙特卡洛相对解析解的误差百分比 (维度: option_type)
	PathsGeneratedTotal prometheus.Counter       // 生成的路径总条数
	BuildInfo           *prometheus.GaugeVec     // 构建信息
}

// NewMetrics 初始化并返回一个新的指标采集器。
// 它会自动注册 Go 运行时指标和进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.PricingRunsTotal = m.NewCounterVec(prometheus.CounterOpts{
		Name: "optionlab_pricing_runs_total",
		Help: "Total number of option pricing computations",
	}, []string{"method", "option_type", "status"})

	m.StageDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optionlab_stage_duration_seconds",
		Help:    "Latency of each analysis stage in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"stage"})

	m.RelativeError = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "optionlab_mc_relative_error_percent",
		Help: "Signed relative difference of Monte Carlo vs Black-Scholes price in percent",
	}, []string{"option_type"})

	m.PathsGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optionlab_paths_generated_total",
		Help: "Total number of simulated price paths",
	})
	reg.MustRegister(m.PathsGeneratedTotal)

	slog.Info("unified metrics registry initialized", "service", serviceName)
	return m
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Registry 返回内部注册中心.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStage 返回一个在调用时记录阶段耗时的函数.
// m 为 nil 时返回空操作，方便调用方在未启用指标时直接使用.
func (m *Metrics) ObserveStage(stage string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// RecordPricing 记录一次定价结果.
func (m *Metrics) RecordPricing(method, optionType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PricingRunsTotal.WithLabelValues(method, optionType, status).Inc()
}

// RecordRelativeError 记录蒙特卡洛相对误差.
func (m *Metrics) RecordRelativeError(optionType string, pct float64) {
	if m == nil {
		return
	}
	m.RelativeError.WithLabelValues(optionType).Set(pct)
}

// AddPaths 累加生成的路径条数.
func (m *Metrics) AddPaths(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PathsGeneratedTotal.Add(float64(n))
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExposeHttp 在指定端口启动一个独立的 HTTP 服务器用于暴露指标数据。
// 返回一个清理函数用于优雅关闭该服务器。
func (m *Metrics) ExposeHttp(port, path string) func() {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
