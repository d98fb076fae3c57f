// Package config provides configuration management for the scanner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	apperrors "optionflow/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Scan    ScanConfig    `mapstructure:"scan"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Bias    BiasConfig    `mapstructure:"bias"`
	Storage StorageConfig `mapstructure:"storage"`
	UI      UIConfig      `mapstructure:"ui"`
}

// ScanConfig holds scan-loop configuration.
type ScanConfig struct {
	Symbols  []string      `mapstructure:"symbols"`
	Interval time.Duration `mapstructure:"interval"`
	// DataDir is the directory the CSV chain source reads from.
	DataDir string `mapstructure:"data_dir"`
}

// EngineConfig holds the pricing, tracking and detection parameters.
type EngineConfig struct {
	// RiskFreeRate is the annualized rate used by the pricing model.
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	// VelocityCapacity is the per-contract OI history depth in samples.
	VelocityCapacity int `mapstructure:"velocity_capacity"`
	// DefaultLotSize applies when a chain row carries none.
	DefaultLotSize int `mapstructure:"default_lot_size"`
	// SignificanceFloor is the minimum absolute OI change, in contracts,
	// the structure detector classifies.
	SignificanceFloor int64 `mapstructure:"significance_floor"`
	// SimilarityRatio pairs two OI moves as one coordinated trade.
	SimilarityRatio float64 `mapstructure:"similarity_ratio"`
	// RatioSpreadThreshold separates ratio spreads from 1:1 spreads.
	RatioSpreadThreshold float64 `mapstructure:"ratio_spread_threshold"`
}

// BiasConfig holds the macro bias composite parameters.
type BiasConfig struct {
	MacroWeight       float64 `mapstructure:"macro_weight"`
	GEXWeight         float64 `mapstructure:"gex_weight"`
	PCRVelocityWeight float64 `mapstructure:"pcr_velocity_weight"`
	VIXWeight         float64 `mapstructure:"vix_weight"`
	// GEXBullishWhenNegative selects the dealer-exposure sign convention
	// for the GEX component.
	GEXBullishWhenNegative bool `mapstructure:"gex_bullish_when_negative"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// DBPath overrides the default SQLite location.
	DBPath string `mapstructure:"db_path"`
	// RetainDays bounds how long scan history is kept; 0 keeps everything.
	RetainDays int `mapstructure:"retain_days"`
}

// UIConfig holds output-related configuration.
type UIConfig struct {
	// ColorDisabled turns off ANSI color in terminal output.
	ColorDisabled bool `mapstructure:"color_disabled"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/optionflow"
	}
	return filepath.Join(home, ".config", "optionflow")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func applyDefaults(cfg *Config) {
	if len(cfg.Scan.Symbols) == 0 {
		cfg.Scan.Symbols = []string{"NIFTY", "BANKNIFTY"}
	}
	if cfg.Scan.Interval <= 0 {
		cfg.Scan.Interval = 3 * time.Minute
	}
	if cfg.Engine.RiskFreeRate == 0 {
		cfg.Engine.RiskFreeRate = 0.065
	}
	if cfg.Engine.VelocityCapacity == 0 {
		cfg.Engine.VelocityCapacity = 60
	}
	if cfg.Engine.DefaultLotSize == 0 {
		cfg.Engine.DefaultLotSize = 50
	}
	if cfg.Engine.SignificanceFloor == 0 {
		cfg.Engine.SignificanceFloor = 500
	}
	if cfg.Engine.SimilarityRatio == 0 {
		cfg.Engine.SimilarityRatio = 0.4
	}
	if cfg.Engine.RatioSpreadThreshold == 0 {
		cfg.Engine.RatioSpreadThreshold = 2.5
	}
	if cfg.Bias.MacroWeight == 0 && cfg.Bias.GEXWeight == 0 &&
		cfg.Bias.PCRVelocityWeight == 0 && cfg.Bias.VIXWeight == 0 {
		cfg.Bias.MacroWeight = 0.25
		cfg.Bias.GEXWeight = 0.25
		cfg.Bias.PCRVelocityWeight = 0.30
		cfg.Bias.VIXWeight = 0.20
		cfg.Bias.GEXBullishWhenNegative = true
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPTIONFLOW_DATA_DIR"); v != "" {
		cfg.Scan.DataDir = v
	}
	if v := os.Getenv("OPTIONFLOW_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("OPTIONFLOW_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scan.Interval = d
		}
	}
	if v := os.Getenv("OPTIONFLOW_RISK_FREE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.RiskFreeRate = f
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scan.Interval < time.Second {
		return fmt.Errorf("%w: scan interval %s is below 1s", apperrors.ErrConfigInvalid, c.Scan.Interval)
	}
	if c.Engine.RiskFreeRate < 0 || c.Engine.RiskFreeRate > 1 {
		return fmt.Errorf("%w: risk_free_rate must be a fraction between 0 and 1", apperrors.ErrConfigInvalid)
	}
	if c.Engine.VelocityCapacity < 2 {
		return fmt.Errorf("%w: velocity_capacity must be at least 2", apperrors.ErrConfigInvalid)
	}
	if c.Engine.DefaultLotSize <= 0 {
		return fmt.Errorf("%w: default_lot_size must be positive", apperrors.ErrConfigInvalid)
	}
	if c.Engine.SignificanceFloor < 0 {
		return fmt.Errorf("%w: significance_floor must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Engine.SimilarityRatio <= 0 || c.Engine.SimilarityRatio >= 1 {
		return fmt.Errorf("%w: similarity_ratio must be between 0 and 1", apperrors.ErrConfigInvalid)
	}
	if c.Engine.RatioSpreadThreshold <= 1 {
		return fmt.Errorf("%w: ratio_spread_threshold must exceed 1", apperrors.ErrConfigInvalid)
	}

	sum := c.Bias.MacroWeight + c.Bias.GEXWeight + c.Bias.PCRVelocityWeight + c.Bias.VIXWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("%w: bias weights must sum to 1.0, got %.2f", apperrors.ErrConfigInvalid, sum)
	}
	if c.Storage.RetainDays < 0 {
		return fmt.Errorf("%w: retain_days must be non-negative", apperrors.ErrConfigInvalid)
	}

	return nil
}

// DBPath returns the configured database path or the default location.
func (c *Config) DBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return filepath.Join(DefaultConfigDir(), "optionflow.db")
}
