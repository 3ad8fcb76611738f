package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewired-gh/stableyield/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	content := `
defillama:
  start_date: "2020-01-01"
  end_date: "2024-12-31"
  timeout: 10s

fred:
  api_key: "file_key"
  tenors:
    - DGS3MO
    - DGS10

analysis:
  lags: [1, 5]
  rolling_window: 60
  max_lag: 3
  spreads:
    - name: "10Y-3M"
      long: DGS10
      short: DGS3MO

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  db_path: "./data/test.db"

logging:
  level: "debug"
  format: "json"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DefiLlama.Timeout != 10*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.DefiLlama.Timeout)
	}
	if cfg.DefiLlama.MaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", cfg.DefiLlama.MaxRetries)
	}
	if len(cfg.FRED.Tenors) != 2 {
		t.Errorf("Expected 2 tenors, got %d", len(cfg.FRED.Tenors))
	}
	if cfg.Analysis.RollingWindow != 60 || cfg.Analysis.MaxLag != 3 {
		t.Errorf("Unexpected analysis params: %+v", cfg.Analysis)
	}
	if cfg.Analysis.ExtremeMultiplier != 2.0 {
		t.Errorf("Expected default extreme multiplier 2, got %f", cfg.Analysis.ExtremeMultiplier)
	}
	spreads := cfg.SpreadDefinitions()
	if len(spreads) != 1 || spreads[0] != (models.Spread{Name: "10Y-3M", Long: models.Tenor10Y, Short: models.Tenor3M}) {
		t.Errorf("Unexpected spreads: %+v", spreads)
	}
	if got := cfg.AlignOptions().KeyColumns; len(got) != 3 {
		t.Errorf("Expected 3 default key columns, got %v", got)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if len(cfg.Analysis.Spreads) != len(models.DefaultSpreads) {
		t.Errorf("Expected %d default spreads, got %d", len(models.DefaultSpreads), len(cfg.Analysis.Spreads))
	}
	if len(cfg.TenorSeries()) != len(models.Tenors) {
		t.Errorf("Expected all tenors by default, got %v", cfg.TenorSeries())
	}
	if cfg.Export.WorkbookPath != "./figures/analysis.xlsx" {
		t.Errorf("Unexpected workbook path: %s", cfg.Export.WorkbookPath)
	}
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("FRED_API_KEY", "env_key")

	cfg, err := Load(writeConfig(t, "logging:\n  level: info\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FRED.APIKey != "env_key" {
		t.Errorf("Expected API key from environment, got %q", cfg.FRED.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Example config is invalid: %v", err)
	}
	if got := len(cfg.SpreadDefinitions()); got != len(models.DefaultSpreads) {
		t.Errorf("Expected %d spreads, got %d", len(models.DefaultSpreads), got)
	}
	if got := cfg.SpreadDefinitions()[0]; got != models.DefaultSpreads[0] {
		t.Errorf("Expected first spread %+v, got %+v", models.DefaultSpreads[0], got)
	}
	if cfg.Analysis.RollingWindow != 30 || cfg.Analysis.VolatilityWindow != 20 {
		t.Errorf("Unexpected windows: rolling=%d volatility=%d", cfg.Analysis.RollingWindow, cfg.Analysis.VolatilityWindow)
	}
}

func TestDateRange(t *testing.T) {
	cfg := validConfig()
	today := models.Date{Year: 2025, Month: time.March, Day: 4}

	start, end, err := cfg.DateRange(today)
	if err != nil {
		t.Fatal(err)
	}
	if start.String() != "2018-01-01" || end != today {
		t.Errorf("Unexpected range %s..%s", start, end)
	}

	cfg.DefiLlama.EndDate = "2024-06-30"
	_, end, err = cfg.DateRange(today)
	if err != nil {
		t.Fatal(err)
	}
	if end.String() != "2024-06-30" {
		t.Errorf("Unexpected end %s", end)
	}
}

func validConfig() *Config {
	return &Config{
		DefiLlama: DefiLlamaConfig{BaseURL: "https://example.com", MaxRetries: 3, StartDate: "2018-01-01"},
		FRED:      FREDConfig{BaseURL: "https://example.com", MaxRetries: 3, RequestsPerMinute: 60, Tenors: []string{"DGS10"}},
		Analysis: AnalysisConfig{
			Columns:           []string{"DGS10"},
			Lags:              []int{5, 20},
			RollingWindow:     30,
			MaxLag:            5,
			ExtremeMultiplier: 2,
			VolatilityWindow:  20,
			KeyColumns:        []string{"circulating_supply_usd", "DGS10"},
		},
		Storage: StorageConfig{DBPath: "./data/test.db", MaxRuns: 10},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid", modify: func(*Config) {}, wantErr: false},
		{name: "missing telegram token when enabled", modify: func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }, wantErr: true},
		{name: "bad start date", modify: func(c *Config) { c.DefiLlama.StartDate = "01/02/2018" }, wantErr: true},
		{name: "end before start", modify: func(c *Config) { c.DefiLlama.EndDate = "2017-12-31" }, wantErr: true},
		{name: "no tenors", modify: func(c *Config) { c.FRED.Tenors = nil }, wantErr: true},
		{name: "zero rate limit", modify: func(c *Config) { c.FRED.RequestsPerMinute = 0 }, wantErr: true},
		{name: "non-positive lag", modify: func(c *Config) { c.Analysis.Lags = []int{0} }, wantErr: true},
		{name: "rolling window too small", modify: func(c *Config) { c.Analysis.RollingWindow = 1 }, wantErr: true},
		{name: "no key columns", modify: func(c *Config) { c.Analysis.KeyColumns = nil }, wantErr: true},
		{name: "spread with same legs", modify: func(c *Config) {
			c.Analysis.Spreads = []SpreadConfig{{Name: "x", Long: "DGS10", Short: "DGS10"}}
		}, wantErr: true},
		{name: "missing db path", modify: func(c *Config) { c.Storage.DBPath = "" }, wantErr: true},
		{name: "export without paths", modify: func(c *Config) { c.Export.Enabled = true }, wantErr: true},
		{name: "invalid log level", modify: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "invalid log format", modify: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
