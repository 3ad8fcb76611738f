package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/rewired-gh/stableyield/internal/analysis"
	"github.com/rewired-gh/stableyield/internal/config"
	"github.com/rewired-gh/stableyield/internal/defillama"
	"github.com/rewired-gh/stableyield/internal/export"
	"github.com/rewired-gh/stableyield/internal/fred"
	"github.com/rewired-gh/stableyield/internal/httpclient"
	"github.com/rewired-gh/stableyield/internal/logger"
	"github.com/rewired-gh/stableyield/internal/models"
	"github.com/rewired-gh/stableyield/internal/report"
	"github.com/rewired-gh/stableyield/internal/storage"
	"github.com/rewired-gh/stableyield/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	envPath    = flag.String("env", ".env", "Path to an optional .env file")
	offline    = flag.Bool("offline", false, "Analyze cached series only, without fetching")
	startDate  = flag.String("start", "", "Override the first date of the window (YYYY-MM-DD)")
	endDate    = flag.String("end", "", "Override the last date of the window (YYYY-MM-DD)")
	listRuns   = flag.Int("runs", 0, "List the most recent N analysis runs and exit")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", *envPath, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *startDate != "" {
		cfg.DefiLlama.StartDate = *startDate
	}
	if *endDate != "" {
		cfg.DefiLlama.EndDate = *endDate
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	if *listRuns > 0 {
		if err := printRuns(store, *listRuns); err != nil {
			logger.Error("Failed to list runs: %v", err)
		}
		return
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling...")
		cancel()
	}()

	if err := runAnalysis(ctx, cfg, store, telegramClient); err != nil {
		logger.Error("Analysis run failed: %v", err)
		if telegramClient != nil {
			if sendErr := telegramClient.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
		os.Exit(1)
	}
}

func runAnalysis(ctx context.Context, cfg *config.Config, store *storage.Storage, telegramClient *telegram.Client) error {
	startedAt := time.Now()
	start, end, err := cfg.DateRange(models.DateOf(startedAt))
	if err != nil {
		return fmt.Errorf("invalid date range: %w", err)
	}
	logger.Info("Starting analysis run for %s to %s", start, end)

	if *offline {
		logger.Info("Offline mode, using cached series")
	} else if err := fetchAndCache(ctx, cfg, store, start, end); err != nil {
		return err
	}

	caps, err := store.LoadMarketCaps(start, end)
	if err != nil {
		return fmt.Errorf("failed to load market caps: %w", err)
	}
	yields, err := store.LoadYields(start, end)
	if err != nil {
		return fmt.Errorf("failed to load yields: %w", err)
	}
	logger.Debug("Loaded %d market cap points and %d yield dates", len(caps), len(yields))

	table, err := analysis.Align(caps, yields, cfg.AlignOptions())
	if err != nil {
		return fmt.Errorf("failed to align series: %w", err)
	}
	logger.Info("Aligned %d rows with columns %v", table.Len(), table.Columns())

	res, err := analysis.New(cfg.AnalysisParams()).Run(table)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	meta := report.Meta{RunID: uuid.NewString(), Start: start, End: end, GeneratedAt: time.Now()}
	text := report.Render(res, meta)
	fmt.Print(text)
	if cfg.Export.ReportPath != "" {
		if err := writeReport(cfg.Export.ReportPath, text); err != nil {
			logger.Error("Failed to write report: %v", err)
		} else {
			logger.Info("Wrote report %s", cfg.Export.ReportPath)
		}
	}
	if cfg.Export.Enabled {
		if err := export.Workbook(res, cfg.Export.WorkbookPath); err != nil {
			logger.Error("Failed to export workbook: %v", err)
		}
	}

	run := &models.Run{
		ID:         meta.RunID,
		StartDate:  start,
		EndDate:    end,
		Rows:       table.Len(),
		Warnings:   len(res.Warnings),
		Report:     text,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if err := store.AddRun(run); err != nil {
		logger.Warn("Failed to record run %s: %v", run.ID, err)
	}

	if telegramClient != nil {
		if err := telegramClient.SendSummary(res, meta); err != nil {
			logger.Error("Failed to send Telegram notification: %v", err)
		} else {
			logger.Info("Sent Telegram summary for run %s", run.ID)
		}
	}

	logger.WithFields(map[string]interface{}{
		"run_id":   run.ID,
		"rows":     run.Rows,
		"warnings": run.Warnings,
		"duration": time.Since(startedAt).String(),
	}).Info("Analysis run completed")
	return nil
}

// fetchAndCache refreshes both series for the window. Without a FRED API key
// only market caps are refreshed and yields come from the cache.
func fetchAndCache(ctx context.Context, cfg *config.Config, store *storage.Storage, start, end models.Date) error {
	llama := defillama.NewClient(cfg.DefiLlama.BaseURL, httpclient.New(httpclient.Options{
		Timeout:        cfg.DefiLlama.Timeout,
		MaxRetries:     cfg.DefiLlama.MaxRetries,
		RetryDelayBase: cfg.DefiLlama.RetryDelayBase,
	}))
	caps, err := llama.FetchMarketCaps(ctx, start, end)
	if err != nil {
		return err
	}
	if err := store.SaveMarketCaps(caps); err != nil {
		return fmt.Errorf("failed to cache market caps: %w", err)
	}

	fredClient := fred.NewClient(cfg.FRED.BaseURL, cfg.FRED.APIKey, httpclient.New(httpclient.Options{
		Timeout:           cfg.FRED.Timeout,
		MaxRetries:        cfg.FRED.MaxRetries,
		RetryDelayBase:    cfg.FRED.RetryDelayBase,
		RequestsPerMinute: cfg.FRED.RequestsPerMinute,
	}))
	yields, err := fredClient.FetchYields(ctx, cfg.TenorSeries(), start, end)
	if errors.Is(err, fred.ErrMissingAPIKey) {
		logger.Warn("FRED API key not set, using cached Treasury yields")
		return nil
	}
	if err != nil {
		return err
	}
	if err := store.SaveYields(yields); err != nil {
		return fmt.Errorf("failed to cache yields: %w", err)
	}
	return nil
}

func writeReport(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func printRuns(store *storage.Storage, limit int) error {
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s to %s  rows=%d  warnings=%d  finished=%s\n",
			r.ID, r.StartDate, r.EndDate, r.Rows, r.Warnings, r.FinishedAt.Format(time.RFC3339))
	}
	return nil
}
