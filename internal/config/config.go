// Package config loads application configuration and sets up logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsg-insights/insights-cli/pkg/companieshouse"
	"github.com/tsg-insights/insights-cli/pkg/ftc"
	"github.com/tsg-insights/insights-cli/pkg/postcodes"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig           `yaml:"store" mapstructure:"store"`
	Charity   ftc.Config            `yaml:"charity" mapstructure:"charity"`
	Company   companieshouse.Config `yaml:"company" mapstructure:"company"`
	Postcodes postcodes.Config      `yaml:"postcodes" mapstructure:"postcodes"`
	Prepare   PrepareConfig         `yaml:"prepare" mapstructure:"prepare"`
	Log       LogConfig             `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lookup-cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or memory
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite file path
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PrepareConfig configures the prepare command.
type PrepareConfig struct {
	Concurrency      int  `yaml:"concurrency" mapstructure:"concurrency"`
	SaveCacheOnError bool `yaml:"save_cache_on_error" mapstructure:"save_cache_on_error"`
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
	v.SetEnvPrefix("INSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "insights.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("charity.base_url", "https://findthatcharity.uk")
	v.SetDefault("charity.timeout_secs", 30)
	v.SetDefault("charity.rate_limit", 10)
	v.SetDefault("company.base_url", "http://data.companieshouse.gov.uk")
	v.SetDefault("company.timeout_secs", 30)
	v.SetDefault("company.rate_limit", 10)
	v.SetDefault("postcodes.base_url", "https://postcodes.findthatcharity.uk")
	v.SetDefault("postcodes.timeout_secs", 30)
	v.SetDefault("postcodes.rate_limit", 10)
	v.SetDefault("prepare.concurrency", 3)
	v.SetDefault("prepare.save_cache_on_error", true)

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
