// Package config loads application configuration from config.yaml and the
// REGVAL_* environment, with environment taking precedence.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Portal     PortalConfig     `yaml:"portal" mapstructure:"portal"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Race       RaceConfig       `yaml:"race" mapstructure:"race"`
	Fallback   FallbackConfig   `yaml:"fallback" mapstructure:"fallback"`
	DLQ        DLQConfig        `yaml:"dlq" mapstructure:"dlq"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Prefetch   PrefetchConfig   `yaml:"prefetch" mapstructure:"prefetch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// CacheConfig configures the TTL cache backend.
type CacheConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver" mapstructure:"driver"`
	// Path is the sqlite database file. Ignored by the memory driver.
	Path string `yaml:"path" mapstructure:"path"`
}

// RegistryConfig configures the curated local table.
type RegistryConfig struct {
	// FixturePath optionally points at a JSON file of extra curated records
	// loaded on top of the built-in seeds.
	FixturePath string `yaml:"fixture_path" mapstructure:"fixture_path"`
}

// PortalConfig configures the public registry endpoints.
type PortalConfig struct {
	SunatProbeURL  string `yaml:"sunat_probe_url" mapstructure:"sunat_probe_url"`
	OSCEProbeURL   string `yaml:"osce_probe_url" mapstructure:"osce_probe_url"`
	SunatDetailURL string `yaml:"sunat_detail_url" mapstructure:"sunat_detail_url"`
	OSCEDetailURL  string `yaml:"osce_detail_url" mapstructure:"osce_detail_url"`
	// BrowserAdapterURL points at the page-automation adapter driving real
	// browser sessions. Empty means scripted navigation runs against the
	// in-process fake, which fails fast and lets the other strategies win.
	BrowserAdapterURL string  `yaml:"browser_adapter_url" mapstructure:"browser_adapter_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig configures per-strategy retry behavior.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the per-portal circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// RaceConfig bounds a concurrent resolution pass.
type RaceConfig struct {
	MaxConcurrent          int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	PerStrategyTimeoutSecs int `yaml:"per_strategy_timeout_secs" mapstructure:"per_strategy_timeout_secs"`
	GlobalTimeoutSecs      int `yaml:"global_timeout_secs" mapstructure:"global_timeout_secs"`
}

// FallbackConfig tunes the degradation chain.
type FallbackConfig struct {
	// PreferLocal short-circuits to the curated table before any live call.
	PreferLocal bool `yaml:"prefer_local" mapstructure:"prefer_local"`
	// HealthWindow is the rolling live-health sample size.
	HealthWindow int `yaml:"health_window" mapstructure:"health_window"`
}

// DLQConfig configures the dead letter queue for failed resolutions.
type DLQConfig struct {
	MaxRetries     int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryAfterSecs int `yaml:"retry_after_secs" mapstructure:"retry_after_secs"`
}

// JobsConfig configures background resolution jobs.
type JobsConfig struct {
	Capacity int `yaml:"capacity" mapstructure:"capacity"`
	Workers  int `yaml:"workers" mapstructure:"workers"`
}

// PrefetchConfig configures the cache-warming scheduler.
type PrefetchConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	IntervalSecs        int     `yaml:"interval_secs" mapstructure:"interval_secs"`
	BatchSize           int     `yaml:"batch_size" mapstructure:"batch_size"`
	BatchPauseSecs      int     `yaml:"batch_pause_secs" mapstructure:"batch_pause_secs"`
	MaxPerPass          int     `yaml:"max_per_pass" mapstructure:"max_per_pass"`
	RequestsPerSecond   float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	HistorySize         int     `yaml:"history_size" mapstructure:"history_size"`
	PopularityThreshold int     `yaml:"popularity_threshold" mapstructure:"popularity_threshold"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures metrics collection and alerting.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	JobFailureRateThreshold float64 `yaml:"job_failure_rate_threshold" mapstructure:"job_failure_rate_threshold"`
	LiveErrorRateThreshold  float64 `yaml:"live_error_rate_threshold" mapstructure:"live_error_rate_threshold"`
	DLQDepthThreshold       int     `yaml:"dlq_depth_threshold" mapstructure:"dlq_depth_threshold"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REGVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.path", "regval-cache.db")
	v.SetDefault("portal.sunat_probe_url", "https://api.sunat.gob.pe/v1/contribuyente/{ruc}")
	v.SetDefault("portal.osce_probe_url", "https://apps.osce.gob.pe/perfilprov-api/proveedor/{ruc}")
	v.SetDefault("portal.sunat_detail_url", "https://e-consultaruc.sunat.gob.pe/cl-ti-itmrconsruc/jcrS00Alias?accion=consPorRuc&nroRuc={ruc}")
	v.SetDefault("portal.osce_detail_url", "https://apps.osce.gob.pe/perfilprov-ui/ficha/{ruc}")
	v.SetDefault("portal.browser_adapter_url", "")
	v.SetDefault("portal.requests_per_second", 2.0)
	v.SetDefault("portal.timeout_secs", 15)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("race.max_concurrent", 3)
	v.SetDefault("race.per_strategy_timeout_secs", 20)
	v.SetDefault("race.global_timeout_secs", 45)
	v.SetDefault("fallback.health_window", 20)
	v.SetDefault("dlq.max_retries", 3)
	v.SetDefault("dlq.retry_after_secs", 300)
	v.SetDefault("jobs.capacity", 1000)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("prefetch.enabled", true)
	v.SetDefault("prefetch.interval_secs", 300)
	v.SetDefault("prefetch.batch_size", 3)
	v.SetDefault("prefetch.batch_pause_secs", 10)
	v.SetDefault("prefetch.max_per_pass", 15)
	v.SetDefault("prefetch.requests_per_second", 0.5)
	v.SetDefault("prefetch.history_size", 100)
	v.SetDefault("prefetch.popularity_threshold", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.job_failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.live_error_rate_threshold", 0.7)
	v.SetDefault("monitoring.dlq_depth_threshold", 25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode. Modes: "serve",
// "resolve", "precache".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Cache.Driver {
	case "memory", "sqlite":
	default:
		problems = append(problems, "cache.driver must be memory or sqlite")
	}
	if c.Cache.Driver == "sqlite" && c.Cache.Path == "" {
		problems = append(problems, "cache.path is required for the sqlite driver")
	}
	if c.Race.MaxConcurrent < 1 || c.Race.MaxConcurrent > 10 {
		problems = append(problems, "race.max_concurrent must be between 1 and 10")
	}
	if c.Race.GlobalTimeoutSecs > 0 && c.Race.PerStrategyTimeoutSecs > c.Race.GlobalTimeoutSecs {
		problems = append(problems, "race.per_strategy_timeout_secs must not exceed race.global_timeout_secs")
	}
	if c.Monitoring.JobFailureRateThreshold < 0 || c.Monitoring.JobFailureRateThreshold > 1 {
		problems = append(problems, "monitoring.job_failure_rate_threshold must be within [0, 1]")
	}
	if c.Monitoring.LiveErrorRateThreshold < 0 || c.Monitoring.LiveErrorRateThreshold > 1 {
		problems = append(problems, "monitoring.live_error_rate_threshold must be within [0, 1]")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Jobs.Capacity < 1 {
			problems = append(problems, "jobs.capacity must be >= 1")
		}
		if c.Jobs.Workers < 1 || c.Jobs.Workers > 32 {
			problems = append(problems, "jobs.workers must be between 1 and 32")
		}
	case "resolve":
	case "precache":
		if c.Prefetch.MaxPerPass < 1 {
			problems = append(problems, "prefetch.max_per_pass must be >= 1")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
