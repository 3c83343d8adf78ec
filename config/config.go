package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration.
type Config struct {
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Sizing   SizingConfig   `yaml:"sizing"`
	Risk     RiskConfig     `yaml:"risk"`
	Reviewer ReviewerConfig `yaml:"reviewer"`
	Paper    PaperConfig    `yaml:"paper"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// AnalyzerConfig controls the price-bucket edge analyzer.
type AnalyzerConfig struct {
	// EdgeHigh is the calibration gap above which an edge is confirmed (sample >= 200).
	EdgeHigh float64 `yaml:"edge_high"`
	// EdgeLow is the calibration gap above which an edge is weak but real (sample >= 100).
	EdgeLow float64 `yaml:"edge_low"`
	// CategoryPattern restricts historical queries to one market family (SQL LIKE).
	CategoryPattern string `yaml:"category_pattern"`
	// LongshotCeiling is the yes-price at or below which a contract counts as a longshot.
	LongshotCeiling int `yaml:"longshot_ceiling"`
	// EnrichTimeoutSeconds bounds each independent enrichment lookup.
	EnrichTimeoutSeconds int `yaml:"enrich_timeout_seconds"`
}

// SizingConfig controls Kelly sizing and confidence labels.
type SizingConfig struct {
	KellyCap         float64 `yaml:"kelly_cap"`
	ConfidenceHigh   float64 `yaml:"confidence_high"`
	ConfidenceMedium float64 `yaml:"confidence_medium"`
	MinSample        int     `yaml:"min_sample"`
}

// RiskConfig controls the hard portfolio gate.
type RiskConfig struct {
	// SameGameCapUSD vetoes new exposure once open cost on one game reaches this.
	SameGameCapUSD float64 `yaml:"same_game_cap_usd"`
	// MinOpenInterest bounces signals whose live open interest is below this (when known).
	MinOpenInterest int `yaml:"min_open_interest"`
}

// ReviewerConfig selects and configures the final reviewer.
type ReviewerConfig struct {
	Mode           string `yaml:"mode"` // rule | remote
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PaperConfig controls the simulated account.
type PaperConfig struct {
	StartingCash float64 `yaml:"starting_cash"`
	MaxContracts int     `yaml:"max_contracts"`
	RiskCap      float64 `yaml:"risk_cap"`
	// StakeUSD is the fixed ledger stake per trade.
	StakeUSD float64 `yaml:"stake_usd"`
}

// APIConfig holds the external API endpoints.
type APIConfig struct {
	KalshiBase string `yaml:"kalshi_base"`
	KalshiWS   string `yaml:"kalshi_ws"`
	ESPNBase   string `yaml:"espn_base"`
}

// StorageConfig controls where state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // path to the SQLite file, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config file and the .env file if present.
// Env vars override YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default returns a config with every default applied, for tests and offline runs.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// EnrichTimeout returns the per-lookup enrichment timeout as a Duration.
func (c *Config) EnrichTimeout() time.Duration {
	return time.Duration(c.Analyzer.EnrichTimeoutSeconds) * time.Second
}

// ReviewTimeout returns the reviewer call timeout as a Duration.
func (c *Config) ReviewTimeout() time.Duration {
	return time.Duration(c.Reviewer.TimeoutSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("REVIEWER_MODE"); v != "" {
		cfg.Reviewer.Mode = v
	}
	if v := os.Getenv("REVIEWER_ENDPOINT"); v != "" {
		cfg.Reviewer.Endpoint = v
	}
	if v := os.Getenv("KALSHIBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Analyzer.EdgeHigh <= 0 {
		cfg.Analyzer.EdgeHigh = 0.015
	}
	if cfg.Analyzer.EdgeLow <= 0 {
		cfg.Analyzer.EdgeLow = 0.0075
	}
	if cfg.Analyzer.CategoryPattern == "" {
		cfg.Analyzer.CategoryPattern = "KXNBA%"
	}
	if cfg.Analyzer.LongshotCeiling <= 0 {
		cfg.Analyzer.LongshotCeiling = 20
	}
	if cfg.Analyzer.EnrichTimeoutSeconds <= 0 {
		cfg.Analyzer.EnrichTimeoutSeconds = 8
	}
	if cfg.Sizing.KellyCap <= 0 {
		cfg.Sizing.KellyCap = 0.15
	}
	if cfg.Sizing.ConfidenceHigh <= 0 {
		cfg.Sizing.ConfidenceHigh = 0.02
	}
	if cfg.Sizing.ConfidenceMedium <= 0 {
		cfg.Sizing.ConfidenceMedium = 0.008
	}
	if cfg.Sizing.MinSample <= 0 {
		cfg.Sizing.MinSample = 200
	}
	if cfg.Risk.SameGameCapUSD <= 0 {
		cfg.Risk.SameGameCapUSD = 15
	}
	if cfg.Risk.MinOpenInterest <= 0 {
		cfg.Risk.MinOpenInterest = 100
	}
	if cfg.Reviewer.Mode == "" {
		cfg.Reviewer.Mode = "rule"
	}
	if cfg.Reviewer.TimeoutSeconds <= 0 {
		cfg.Reviewer.TimeoutSeconds = 20
	}
	if cfg.Paper.StartingCash <= 0 {
		cfg.Paper.StartingCash = 1000
	}
	if cfg.Paper.MaxContracts <= 0 {
		cfg.Paper.MaxContracts = 20
	}
	if cfg.Paper.RiskCap <= 0 {
		cfg.Paper.RiskCap = 0.02
	}
	if cfg.Paper.StakeUSD <= 0 {
		cfg.Paper.StakeUSD = 10
	}
	if cfg.API.KalshiBase == "" {
		cfg.API.KalshiBase = "https://api.elections.kalshi.com/trade-api/v2"
	}
	if cfg.API.KalshiWS == "" {
		cfg.API.KalshiWS = "wss://api.elections.kalshi.com/trade-api/ws/v2"
	}
	if cfg.API.ESPNBase == "" {
		cfg.API.ESPNBase = "https://site.api.espn.com/apis/site/v2/sports/basketball/nba"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "kalshibot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
