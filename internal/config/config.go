package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	PubChem    PubChemConfig    `yaml:"pubchem" mapstructure:"pubchem"`
	Gateway    GatewayConfig    `yaml:"gateway" mapstructure:"gateway"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// CatalogConfig configures the extraction profile catalog.
type CatalogConfig struct {
	ProfileDir string `yaml:"profile_dir" mapstructure:"profile_dir"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PubChemConfig configures the external chemical database client.
type PubChemConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	RateLimit      float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests/sec
	LookupCacheTTL time.Duration `yaml:"lookup_cache_ttl" mapstructure:"lookup_cache_ttl"`
	AuthorityConf  float64       `yaml:"authority_confidence" mapstructure:"authority_confidence"`
}

// RetryConfig mirrors the resilience retry knobs in configuration.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	Multiplier  float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// GatewayConfig configures the resilient model gateway.
type GatewayConfig struct {
	ConfidenceThreshold  float64       `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	CacheTTL             time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CacheCapacity        int           `yaml:"cache_capacity" mapstructure:"cache_capacity"`
	Retry                RetryConfig   `yaml:"retry" mapstructure:"retry"`
	ConsensusModels      []string      `yaml:"consensus_models" mapstructure:"consensus_models"`
	ConsensusWorkers     int           `yaml:"consensus_workers" mapstructure:"consensus_workers"`
	FewShotExampleCount  int           `yaml:"few_shot_example_count" mapstructure:"few_shot_example_count"`
	AgreementBonus       float64       `yaml:"agreement_bonus" mapstructure:"agreement_bonus"`
	DisagreementPenalty  float64       `yaml:"disagreement_penalty" mapstructure:"disagreement_penalty"`
	RequestTimeout       time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	BackendRateLimit     float64       `yaml:"backend_rate_limit" mapstructure:"backend_rate_limit"`
}

// AggregateConfig configures heuristic/model combination.
type AggregateConfig struct {
	ModelFloor     float64 `yaml:"model_floor" mapstructure:"model_floor"`
	AgreementBonus float64 `yaml:"agreement_bonus" mapstructure:"agreement_bonus"`
}

// BatchConfig configures document-level parallelism.
type BatchConfig struct {
	DocWorkers   int `yaml:"doc_workers" mapstructure:"doc_workers"`
	FieldWorkers int `yaml:"field_workers" mapstructure:"field_workers"`
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "sds.db")
	v.SetDefault("catalog.profile_dir", "profiles")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("pubchem.base_url", "https://pubchem.ncbi.nlm.nih.gov/rest/pug")
	v.SetDefault("pubchem.rate_limit", 5)
	v.SetDefault("pubchem.lookup_cache_ttl", time.Hour)
	v.SetDefault("pubchem.authority_confidence", 0.9)
	v.SetDefault("gateway.confidence_threshold", 0.5)
	v.SetDefault("gateway.cache_ttl", 30*time.Minute)
	v.SetDefault("gateway.cache_capacity", 1000)
	v.SetDefault("gateway.retry.max_attempts", 3)
	v.SetDefault("gateway.retry.base_delay", time.Second)
	v.SetDefault("gateway.retry.multiplier", 2.0)
	v.SetDefault("gateway.consensus_workers", 4)
	v.SetDefault("gateway.few_shot_example_count", 2)
	v.SetDefault("gateway.agreement_bonus", 0.10)
	v.SetDefault("gateway.disagreement_penalty", 0.15)
	v.SetDefault("gateway.request_timeout", 60*time.Second)
	v.SetDefault("gateway.backend_rate_limit", 10)
	v.SetDefault("aggregate.model_floor", 0.5)
	v.SetDefault("aggregate.agreement_bonus", 0.10)
	v.SetDefault("batch.doc_workers", 0) // 0 = min(NumCPU, 8)
	v.SetDefault("batch.field_workers", 4)

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
