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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Load   LoadConfig   `yaml:"load" mapstructure:"load"`
	Build  BuildConfig  `yaml:"build" mapstructure:"build"`
	Mart   MartConfig   `yaml:"mart" mapstructure:"mart"`
	Health HealthConfig `yaml:"health" mapstructure:"health"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the warehouse backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// LoadConfig configures the bronze-layer raw loader.
type LoadConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// BuildConfig configures pipeline execution.
type BuildConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// MartConfig holds the risk-classification thresholds for the monthly
// line scorecard. Demand drops are percentages (positive numbers), quality
// thresholds are punctuality rates on a 0-100 scale.
type MartConfig struct {
	DemandDropHighPct   float64 `yaml:"demand_drop_high_pct" mapstructure:"demand_drop_high_pct"`
	DemandDropMediumPct float64 `yaml:"demand_drop_medium_pct" mapstructure:"demand_drop_medium_pct"`
	QualityLowThreshold float64 `yaml:"quality_low_threshold" mapstructure:"quality_low_threshold"`
	QualityMidThreshold float64 `yaml:"quality_mid_threshold" mapstructure:"quality_mid_threshold"`
}

// HealthConfig configures the data-health monitor. SLAHours maps a monitored
// table name to its maximum allowed freshness age in hours; the monitor reads
// this mapping but does not own it.
type HealthConfig struct {
	LookbackDays int                `yaml:"lookback_days" mapstructure:"lookback_days"`
	SLAHours     map[string]float64 `yaml:"sla_hours" mapstructure:"sla_hours"`
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
	v.SetEnvPrefix("TRANSITMART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "transitmart.db")
	v.SetDefault("load.dir", "data/bronze")
	v.SetDefault("build.workers", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("mart.demand_drop_high_pct", 10)
	v.SetDefault("mart.demand_drop_medium_pct", 5)
	v.SetDefault("mart.quality_low_threshold", 85)
	v.SetDefault("mart.quality_mid_threshold", 90)
	v.SetDefault("health.lookback_days", 7)
	// Freshness SLAs in hours. Validations land daily at 2 AM for the previous
	// day, hence the 30h allowance; punctuality is a monthly feed.
	v.SetDefault("health.sla_hours.fct_validations_daily", 30)
	v.SetDefault("health.sla_hours.fct_punctuality_monthly", 840)
	v.SetDefault("health.sla_hours.mart_line_performance_monthly", 30)
	v.SetDefault("health.sla_hours.mart_station_traffic_monthly", 30)
	v.SetDefault("health.sla_hours.dim_stops", 192)
	v.SetDefault("health.sla_hours.dim_lines", 192)
	v.SetDefault("health.sla_hours.dim_stop_lines", 192)

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
