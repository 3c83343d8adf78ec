package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/adapters/espn"
	"github.com/alejandrodnm/kalshibot/internal/adapters/kalshi"
	"github.com/alejandrodnm/kalshibot/internal/adapters/notify"
	"github.com/alejandrodnm/kalshibot/internal/adapters/storage"
	"github.com/alejandrodnm/kalshibot/internal/analyzer"
	"github.com/alejandrodnm/kalshibot/internal/broker"
	"github.com/alejandrodnm/kalshibot/internal/ledger"
	"github.com/alejandrodnm/kalshibot/internal/pipeline"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/alejandrodnm/kalshibot/internal/reviewer"
	"github.com/alejandrodnm/kalshibot/internal/risk"
	"github.com/alejandrodnm/kalshibot/internal/sizing"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	backtestMode := flag.Bool("backtest", false, "replay resolved markets through the pipeline and exit")
	settleMode := flag.Bool("settle", false, "run one settlement pass over pending trades and exit")
	n := flag.Int("n", 500, "backtest: max resolved markets to replay")
	bankroll := flag.Float64("bankroll", 0, "backtest: starting cash (overrides config)")
	stake := flag.Float64("stake", 0, "fixed ledger stake per trade in USD (overrides config)")
	dataDir := flag.String("data-dir", "", "directory holding the SQLite database (overrides config DSN)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *bankroll > 0 {
		cfg.Paper.StartingCash = *bankroll
	}
	if *stake > 0 {
		cfg.Paper.StakeUSD = *stake
	}
	if *dataDir != "" {
		cfg.Storage.DSN = filepath.Join(*dataDir, "kalshibot.db")
	}
	setupLogger(cfg.Log)
	log := slog.Default()

	slog.Info("kalshibot starting",
		"config", *configPath,
		"dsn", cfg.Storage.DSN,
		"backtest", *backtestMode,
		"settle", *settleMode,
	)

	store, err := storage.New(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()
	store.SetCategoryPattern(cfg.Analyzer.CategoryPattern)

	notifier := notify.NewConsole()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *backtestMode {
		runBacktest(ctx, cfg, store, notifier, *n, log)
		return
	}

	creds, err := kalshi.LoadCredentials()
	if err != nil {
		slog.Error("failed to load Kalshi credentials", "err", err)
		os.Exit(1)
	}
	if creds == nil {
		slog.Warn("no Kalshi credentials; live market lookups disabled")
	}
	rest := kalshi.NewREST(cfg.API.KalshiBase, creds, log)
	games := espn.New(cfg.API.ESPNBase, log)

	led := ledger.New(store, log)

	if *settleMode {
		runSettle(ctx, led, games, notifier, log)
		return
	}

	if creds == nil {
		slog.Error("live mode needs credentials; set KALSHI_API_KEY_ID and KALSHI_PRIVATE_KEY_PATH")
		os.Exit(1)
	}

	paper := broker.New(broker.Config{
		StartingCash: cfg.Paper.StartingCash,
		MaxContracts: cfg.Paper.MaxContracts,
		RiskCap:      cfg.Paper.RiskCap,
	}, store, log)

	orch := pipeline.NewOrchestrator(
		pipeline.OrchestratorConfig{
			MinSample:    cfg.Sizing.MinSample,
			StakeUSD:     cfg.Paper.StakeUSD,
			RecordTrades: true,
		},
		newAnalyzer(cfg, store, rest, games, log),
		sizing.New(sizingConfig(cfg)),
		risk.New(risk.Config{SameGameCapUSD: cfg.Risk.SameGameCapUSD}),
		newReviewer(cfg, store, log),
		led,
		paper,
		notifier,
		log,
	)

	bouncer := pipeline.NewBouncer(bouncerConfig(cfg), rest, log)
	router := pipeline.NewRouter(bouncer, log)

	handler := func(ctx context.Context, ticker string, yesPrice int) {
		_, sig := router.Route(ctx, ticker, yesPrice)
		if sig == nil {
			return
		}
		if _, err := orch.Process(ctx, *sig); err != nil {
			slog.Error("pipeline error", "ticker", ticker, "err", err)
		}
	}

	stream := kalshi.NewStream(cfg.API.KalshiWS, creds, handler, log)
	if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("stream exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("kalshibot stopped cleanly")
}

func newAnalyzer(cfg *config.Config, store ports.EdgeStore, market ports.MarketData, games ports.GameFinder, log *slog.Logger) *analyzer.EdgeAnalyzer {
	return analyzer.New(analyzer.Config{
		EdgeHigh:        cfg.Analyzer.EdgeHigh,
		EdgeLow:         cfg.Analyzer.EdgeLow,
		LongshotCeiling: cfg.Analyzer.LongshotCeiling,
		EnrichTimeout:   cfg.EnrichTimeout(),
	}, store, market, games, log)
}

func newReviewer(cfg *config.Config, store ports.EdgeStore, log *slog.Logger) ports.Reviewer {
	var inner ports.Reviewer
	switch cfg.Reviewer.Mode {
	case "remote":
		inner = reviewer.NewRemote(cfg.Reviewer.Endpoint, cfg.ReviewTimeout())
	default:
		inner = reviewer.NewRule(reviewer.RuleConfig{
			KellyCap: cfg.Sizing.KellyCap,
			EdgeHigh: cfg.Sizing.ConfidenceHigh,
		}, store, log)
	}
	return reviewer.NewFailSafe(inner, log)
}

func sizingConfig(cfg *config.Config) sizing.Config {
	return sizing.Config{
		KellyCap:         cfg.Sizing.KellyCap,
		ConfidenceHigh:   cfg.Sizing.ConfidenceHigh,
		ConfidenceMedium: cfg.Sizing.ConfidenceMedium,
		MinSample:        cfg.Sizing.MinSample,
	}
}

func bouncerConfig(cfg *config.Config) pipeline.BouncerConfig {
	return pipeline.BouncerConfig{
		LongshotCeiling: cfg.Analyzer.LongshotCeiling,
		LongshotFloor:   100 - cfg.Analyzer.LongshotCeiling,
		MinOpenInterest: cfg.Risk.MinOpenInterest,
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
