package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/stableyield/internal/analysis"
	"github.com/rewired-gh/stableyield/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	DefiLlama DefiLlamaConfig `mapstructure:"defillama"`
	FRED      FREDConfig      `mapstructure:"fred"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Export    ExportConfig    `mapstructure:"export"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DefiLlamaConfig holds stablecoin API configuration
type DefiLlamaConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	StartDate      string        `mapstructure:"start_date"`
	EndDate        string        `mapstructure:"end_date"` // empty = today
}

// FREDConfig holds Treasury yield API configuration
type FREDConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Tenors            []string      `mapstructure:"tenors"`
}

// SpreadConfig defines one derived long-minus-short spread column
type SpreadConfig struct {
	Name  string `mapstructure:"name"`
	Long  string `mapstructure:"long"`
	Short string `mapstructure:"short"`
}

// AnalysisConfig holds analysis engine parameters
type AnalysisConfig struct {
	Columns           []string       `mapstructure:"columns"`
	Lags              []int          `mapstructure:"lags"`
	RollingWindow     int            `mapstructure:"rolling_window"`
	MaxLag            int            `mapstructure:"max_lag"`
	ExtremeMultiplier float64        `mapstructure:"extreme_multiplier"`
	VolatilityWindow  int            `mapstructure:"volatility_window"`
	KeyColumns        []string       `mapstructure:"key_columns"`
	Spreads           []SpreadConfig `mapstructure:"spreads"`
}

// StorageConfig holds the SQLite cache configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// ExportConfig holds output file configuration
type ExportConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	WorkbookPath string `mapstructure:"workbook_path"`
	ReportPath   string `mapstructure:"report_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	// STABLEYIELD_FRED_BASE_URL overrides fred.base_url, and so on
	v.SetEnvPrefix("STABLEYIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("fred.api_key", "STABLEYIELD_FRED_API_KEY", "FRED_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind FRED API key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	defaults := analysis.DefaultConfig()

	// DefiLlama defaults
	v.SetDefault("defillama.base_url", "https://stablecoins.llama.fi")
	v.SetDefault("defillama.timeout", "30s")
	v.SetDefault("defillama.max_retries", 3)
	v.SetDefault("defillama.retry_delay_base", "2s")
	v.SetDefault("defillama.start_date", "2018-01-01")
	v.SetDefault("defillama.end_date", "")

	// FRED defaults
	tenors := make([]string, len(models.Tenors))
	for i, t := range models.Tenors {
		tenors[i] = string(t)
	}
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")
	v.SetDefault("fred.timeout", "30s")
	v.SetDefault("fred.max_retries", 3)
	v.SetDefault("fred.retry_delay_base", "2s")
	v.SetDefault("fred.requests_per_minute", 120) // FRED's published limit
	v.SetDefault("fred.tenors", tenors)

	// Analysis defaults
	spreads := make([]map[string]string, len(models.DefaultSpreads))
	for i, s := range models.DefaultSpreads {
		spreads[i] = map[string]string{"name": s.Name, "long": string(s.Long), "short": string(s.Short)}
	}
	v.SetDefault("analysis.columns", defaults.Columns)
	v.SetDefault("analysis.lags", defaults.Lags)
	v.SetDefault("analysis.rolling_window", defaults.RollingWindow)
	v.SetDefault("analysis.max_lag", defaults.MaxLag)
	v.SetDefault("analysis.extreme_multiplier", defaults.ExtremeMultiplier)
	v.SetDefault("analysis.volatility_window", defaults.VolatilityWindow)
	v.SetDefault("analysis.key_columns", analysis.DefaultAlignOptions().KeyColumns)
	v.SetDefault("analysis.spreads", spreads)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/stableyield.db")
	v.SetDefault("storage.max_runs", 100)

	// Export defaults
	v.SetDefault("export.enabled", true)
	v.SetDefault("export.workbook_path", "./figures/analysis.xlsx")
	v.SetDefault("export.report_path", "./figures/analysis_report.txt")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate DefiLlama config
	if c.DefiLlama.BaseURL == "" {
		return fmt.Errorf("defillama.base_url is required")
	}
	if c.DefiLlama.MaxRetries < 1 {
		return fmt.Errorf("defillama.max_retries must be at least 1")
	}
	start, err := models.ParseDate(c.DefiLlama.StartDate)
	if err != nil {
		return fmt.Errorf("defillama.start_date: %w", err)
	}
	if c.DefiLlama.EndDate != "" {
		end, err := models.ParseDate(c.DefiLlama.EndDate)
		if err != nil {
			return fmt.Errorf("defillama.end_date: %w", err)
		}
		if end.Before(start) {
			return fmt.Errorf("defillama.end_date must not be before start_date")
		}
	}

	// Validate FRED config
	if c.FRED.BaseURL == "" {
		return fmt.Errorf("fred.base_url is required")
	}
	if c.FRED.MaxRetries < 1 {
		return fmt.Errorf("fred.max_retries must be at least 1")
	}
	if c.FRED.RequestsPerMinute < 1 {
		return fmt.Errorf("fred.requests_per_minute must be at least 1")
	}
	if len(c.FRED.Tenors) == 0 {
		return fmt.Errorf("fred.tenors must contain at least one series")
	}

	// Validate Analysis config
	if err := c.AnalysisParams().Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if len(c.Analysis.KeyColumns) == 0 {
		return fmt.Errorf("analysis.key_columns must contain at least one column")
	}
	for _, s := range c.SpreadDefinitions() {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("analysis.spreads: %w", err)
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRuns < 1 {
		return fmt.Errorf("storage.max_runs must be at least 1")
	}

	// Validate Export config
	if c.Export.Enabled && (c.Export.WorkbookPath == "" || c.Export.ReportPath == "") {
		return fmt.Errorf("export.workbook_path and export.report_path are required when export is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// DateRange returns the inclusive fetch window; an empty end date means today.
func (c *Config) DateRange(today models.Date) (models.Date, models.Date, error) {
	start, err := models.ParseDate(c.DefiLlama.StartDate)
	if err != nil {
		return models.Date{}, models.Date{}, err
	}
	if c.DefiLlama.EndDate == "" {
		return start, today, nil
	}
	end, err := models.ParseDate(c.DefiLlama.EndDate)
	if err != nil {
		return models.Date{}, models.Date{}, err
	}
	return start, end, nil
}

// TenorSeries returns the configured FRED series as tenors
func (c *Config) TenorSeries() []models.Tenor {
	out := make([]models.Tenor, len(c.FRED.Tenors))
	for i, t := range c.FRED.Tenors {
		out[i] = models.Tenor(t)
	}
	return out
}

// SpreadDefinitions converts the configured spreads
func (c *Config) SpreadDefinitions() []models.Spread {
	out := make([]models.Spread, len(c.Analysis.Spreads))
	for i, s := range c.Analysis.Spreads {
		out[i] = models.Spread{Name: s.Name, Long: models.Tenor(s.Long), Short: models.Tenor(s.Short)}
	}
	return out
}

// AnalysisParams returns the engine parameters
func (c *Config) AnalysisParams() analysis.Config {
	return analysis.Config{
		Columns:           c.Analysis.Columns,
		Lags:              c.Analysis.Lags,
		RollingWindow:     c.Analysis.RollingWindow,
		MaxLag:            c.Analysis.MaxLag,
		ExtremeMultiplier: c.Analysis.ExtremeMultiplier,
		VolatilityWindow:  c.Analysis.VolatilityWindow,
	}
}

// AlignOptions returns the join options
func (c *Config) AlignOptions() analysis.AlignOptions {
	return analysis.AlignOptions{
		Spreads:    c.SpreadDefinitions(),
		KeyColumns: c.Analysis.KeyColumns,
	}
}
