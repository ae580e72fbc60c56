// Package config 提供了统一的配置加载与管理能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/optionlab/logging"
)

// EnvPrefix 环境变量前缀，如 OPTIONLAB_PRICING_PATHS 覆盖 pricing.paths.
const EnvPrefix = "OPTIONLAB"

// Config 全局顶级配置结构.
type Config struct {
	Version string        `mapstructure:"version" toml:"version"`
	Log     LogConfig     `mapstructure:"log"     toml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
	Pricing PricingConfig `mapstructure:"pricing" toml:"pricing"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"oneof=debug info warn error"` // 日志级别。
	Format     string `mapstructure:"format"      toml:"format"      validate:"oneof=json text"`             // 日志格式（json/text）。
	File       string `mapstructure:"file"        toml:"file"`                                               // 日志文件路径。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"    validate:"min=0"`                       // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" validate:"min=0"`                       // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"     validate:"min=0"`                       // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`                                           // 是否启用压缩。
	Stdout     bool   `mapstructure:"stdout"      toml:"stdout"`                                             // 写文件时是否同时输出到 stdout。
}

// TracingConfig 分布式链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"min=0,max=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// PricingConfig 定价实验参数.
type PricingConfig struct {
	Spot             float64 `mapstructure:"spot"              toml:"spot"              validate:"gt=0"`
	Strike           float64 `mapstructure:"strike"            toml:"strike"            validate:"gt=0"`
	Rate             float64 `mapstructure:"rate"              toml:"rate"`
	Volatility       float64 `mapstructure:"volatility"        toml:"volatility"        validate:"gt=0"`
	Maturity         float64 `mapstructure:"maturity"          toml:"maturity"          validate:"gt=0"`
	Steps            int     `mapstructure:"steps"             toml:"steps"             validate:"min=1"`
	Paths            int     `mapstructure:"paths"             toml:"paths"             validate:"min=1"`
	Antithetic       bool    `mapstructure:"antithetic"        toml:"antithetic"`
	Seed             uint64  `mapstructure:"seed"              toml:"seed"`           // 0 表示使用时间熵。
	Workers          int     `mapstructure:"workers"           toml:"workers"         validate:"min=0"`
	DisplayPaths     int     `mapstructure:"display_paths"     toml:"display_paths"   validate:"min=0"`
	GammaPoints      int     `mapstructure:"gamma_points"      toml:"gamma_points"    validate:"min=2"`
	GammaLow         float64 `mapstructure:"gamma_low"         toml:"gamma_low"       validate:"gt=0,ltfield=GammaHigh"`
	GammaHigh        float64 `mapstructure:"gamma_high"        toml:"gamma_high"      validate:"gt=0"`
	ConvergencePaths []int   `mapstructure:"convergence_paths" toml:"convergence_paths" validate:"dive,min=1"`
	ConvergenceSeeds int     `mapstructure:"convergence_seeds" toml:"convergence_seeds" validate:"min=0"`
}

// SetDefaults 注册默认值. 未出现在文件中的键仍可被环境变量覆盖.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("version", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.stdout", true)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", "9090")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "optionlab")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sampler_ratio", 1.0)

	v.SetDefault("pricing.spot", 100.0)
	v.SetDefault("pricing.strike", 100.0)
	v.SetDefault("pricing.rate", 0.05)
	v.SetDefault("pricing.volatility", 0.2)
	v.SetDefault("pricing.maturity", 1.0)
	v.SetDefault("pricing.steps", 252)
	v.SetDefault("pricing.paths", 5000)
	v.SetDefault("pricing.antithetic", true)
	v.SetDefault("pricing.seed", 42)
	v.SetDefault("pricing.workers", 0)
	v.SetDefault("pricing.display_paths", 20)
	v.SetDefault("pricing.gamma_points", 50)
	v.SetDefault("pricing.gamma_low", 0.7)
	v.SetDefault("pricing.gamma_high", 1.3)
	v.SetDefault("pricing.convergence_paths", []int{1000, 5000, 10000, 50000, 100000})
	v.SetDefault("pricing.convergence_seeds", 5)
}

var (
	mu       sync.Mutex
	onReload []func(*Config)
	validate = validator.New()
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

// Load 加载配置：默认值 < 配置文件 < 环境变量.
// path 为空时只使用默认值与环境变量，且不监听文件变化.
func Load(path string, conf *Config) error {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config error: %w", err)
		}
	}

	if err := v.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	if err := Validate(conf); err != nil {
		return err
	}

	if path == "" {
		return nil
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		var next Config
		if unmarshalErr := v.Unmarshal(&next); unmarshalErr != nil {
			slog.Error("reload config unmarshal failed", "error", unmarshalErr)
			return
		}
		if validateErr := Validate(&next); validateErr != nil {
			slog.Error("reload config validation failed", "error", validateErr)
			return
		}

		logging.SetLevel(next.Log.Level)
		slog.Info("config hot-reloaded and validated successfully")

		mu.Lock()
		hooks := append([]func(*Config){}, onReload...)
		mu.Unlock()
		for _, hook := range hooks {
			hook(&next)
		}
	})
	v.WatchConfig()

	return nil
}

// Validate 按结构体标签校验配置.
func Validate(conf *Config) error {
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)

		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)

		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.MarshalIndent(configMap, "  ", "  ")
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)

		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)

			continue
		}

		if slice, ok := val.([]any); ok {
			for _, item := range slice {
				if itemMap, ok := item.(map[string]any); ok {
					mask(itemMap)
				}
			}

			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"

				break
			}
		}
	}
}
