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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	GenAI     GenAIConfig     `yaml:"genai" mapstructure:"genai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gateway   GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Geo       GeoConfig       `yaml:"geo" mapstructure:"geo"`
	Orch      OrchConfig      `yaml:"orchestrator" mapstructure:"orchestrator"`
	Scout     ScoutConfig     `yaml:"scout" mapstructure:"scout"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GenAIConfig holds settings for the primary generation endpoint.
type GenAIConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	FastModel   string  `yaml:"fast_model" mapstructure:"fast_model"`
	DeepModel   string  `yaml:"deep_model" mapstructure:"deep_model"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds settings for the optional deep-tier backend.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	// UseForDeep routes deep-tier tasks through the Anthropic backend
	// instead of the generation endpoint's deep model.
	UseForDeep bool `yaml:"use_for_deep" mapstructure:"use_for_deep"`
}

// GatewayConfig configures call budgeting and the repair loop.
type GatewayConfig struct {
	HourlyBudgetFast int `yaml:"hourly_budget_fast" mapstructure:"hourly_budget_fast"`
	HourlyBudgetDeep int `yaml:"hourly_budget_deep" mapstructure:"hourly_budget_deep"`
	RepairAttempts   int `yaml:"repair_attempts" mapstructure:"repair_attempts"`
	TransportRetries int `yaml:"transport_retries" mapstructure:"transport_retries"`
}

// IngestConfig configures identity resolution.
type IngestConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	SubstringBoost      float64 `yaml:"substring_boost" mapstructure:"substring_boost"`
	MinSubstringLen     int     `yaml:"min_substring_len" mapstructure:"min_substring_len"`
}

// GeoConfig configures radius filtering.
type GeoConfig struct {
	EscalationRadiiKm []float64 `yaml:"escalation_radii_km" mapstructure:"escalation_radii_km"`
	FallbackCount     int       `yaml:"fallback_count" mapstructure:"fallback_count"`
}

// OrchConfig configures chunked task execution.
type OrchConfig struct {
	ChunkPacingMs int `yaml:"chunk_pacing_ms" mapstructure:"chunk_pacing_ms"`
	DefaultDays   int `yaml:"default_days" mapstructure:"default_days"`
}

// ScoutConfig configures the multi-location scouting workflow.
type ScoutConfig struct {
	LocationPacingMs int `yaml:"location_pacing_ms" mapstructure:"location_pacing_ms"`
	MinAddressLen    int `yaml:"min_address_len" mapstructure:"min_address_len"`
}

// ServerConfig configures the status server.
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
	v.SetEnvPrefix("PLACESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "placescout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("genai.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("genai.fast_model", "gemini-2.0-flash")
	v.SetDefault("genai.deep_model", "gemini-2.0-pro")
	v.SetDefault("genai.rps", 1.0)
	v.SetDefault("genai.max_tokens", 8192)
	v.SetDefault("genai.temperature", 0.7)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("gateway.hourly_budget_fast", 60)
	v.SetDefault("gateway.hourly_budget_deep", 20)
	v.SetDefault("gateway.repair_attempts", 2)
	v.SetDefault("gateway.transport_retries", 1)
	v.SetDefault("ingest.similarity_threshold", 0.85)
	v.SetDefault("ingest.substring_boost", 0.95)
	v.SetDefault("ingest.min_substring_len", 4)
	v.SetDefault("geo.escalation_radii_km", []float64{0.5, 2.0, 10.0})
	v.SetDefault("geo.fallback_count", 5)
	v.SetDefault("orchestrator.chunk_pacing_ms", 500)
	v.SetDefault("orchestrator.default_days", 7)
	v.SetDefault("scout.location_pacing_ms", 500)
	v.SetDefault("scout.min_address_len", 8)

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
