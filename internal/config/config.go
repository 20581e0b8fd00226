// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Merge    MergeConfig    `yaml:"merge" mapstructure:"merge"`
	Identity IdentityConfig `yaml:"identity" mapstructure:"identity"`
	Review   ReviewConfig   `yaml:"review" mapstructure:"review"`
	SLA      SLAConfig      `yaml:"sla" mapstructure:"sla"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Path is the sqlite file location when driver is sqlite.
	Path string `yaml:"path" mapstructure:"path"`
}

// MergeConfig tunes field reconciliation.
type MergeConfig struct {
	DisagreementFactor float64 `yaml:"disagreement_factor" mapstructure:"disagreement_factor"`
}

// IdentityConfig tunes person-identity matching.
type IdentityConfig struct {
	MaxEditDistance         int     `yaml:"max_edit_distance" mapstructure:"max_edit_distance"`
	NearIdentifierPenalty   float64 `yaml:"near_identifier_penalty" mapstructure:"near_identifier_penalty"`
	FuzzyNamePenalty        float64 `yaml:"fuzzy_name_penalty" mapstructure:"fuzzy_name_penalty"`
	NameSimilarityThreshold float64 `yaml:"name_similarity_threshold" mapstructure:"name_similarity_threshold"`
}

// ReviewConfig tunes the manual-review gate.
type ReviewConfig struct {
	FieldConfidenceThreshold    float64 `yaml:"field_confidence_threshold" mapstructure:"field_confidence_threshold"`
	IdentityConfidenceThreshold float64 `yaml:"identity_confidence_threshold" mapstructure:"identity_confidence_threshold"`
}

// SLAConfig configures deadline evaluation and the background checker.
type SLAConfig struct {
	DefaultResponseDays  int     `yaml:"default_response_days" mapstructure:"default_response_days"`
	CalendarPath         string  `yaml:"calendar_path" mapstructure:"calendar_path"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	ChecksPerSecond      float64 `yaml:"checks_per_second" mapstructure:"checks_per_second"`
	AtRiskThresholdHours int     `yaml:"at_risk_threshold_hours" mapstructure:"at_risk_threshold_hours"`
}

// EngineConfig configures the orchestrator.
type EngineConfig struct {
	Actor string `yaml:"actor" mapstructure:"actor"`
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

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "decision-engine.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("merge.disagreement_factor", 0.5)
	v.SetDefault("identity.max_edit_distance", 2)
	v.SetDefault("identity.near_identifier_penalty", 0.15)
	v.SetDefault("identity.fuzzy_name_penalty", 0.30)
	v.SetDefault("identity.name_similarity_threshold", 0.60)
	v.SetDefault("review.field_confidence_threshold", 0.80)
	v.SetDefault("review.identity_confidence_threshold", 0.70)
	v.SetDefault("sla.default_response_days", 10)
	v.SetDefault("sla.check_interval_secs", 300)
	v.SetDefault("sla.checks_per_second", 50)
	v.SetDefault("sla.at_risk_threshold_hours", 24)
	v.SetDefault("engine.actor", "decision-engine")

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
