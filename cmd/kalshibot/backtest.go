package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/kalshibot/config"
	"github.com/alejandrodnm/kalshibot/internal/adapters/notify"
	"github.com/alejandrodnm/kalshibot/internal/adapters/storage"
	"github.com/alejandrodnm/kalshibot/internal/backtest"
	"github.com/alejandrodnm/kalshibot/internal/broker"
	"github.com/alejandrodnm/kalshibot/internal/ledger"
	"github.com/alejandrodnm/kalshibot/internal/pipeline"
	"github.com/alejandrodnm/kalshibot/internal/risk"
	"github.com/alejandrodnm/kalshibot/internal/sizing"
)

// runBacktest replays resolved markets from the historical store through
// the full pipeline. The ledger and the paper book live in a throwaway
// in-memory database so a replay never touches live state, and every
// live lookup is disabled so the run is deterministic.
func runBacktest(ctx context.Context, cfg *config.Config, store *storage.SQLite, notifier *notify.Console, n int, log *slog.Logger) {
	slog.Info("=== BACKTEST MODE: replaying resolved markets ===", "n", n)

	mem, err := storage.New(":memory:")
	if err != nil {
		slog.Error("failed to open scratch storage", "err", err)
		os.Exit(1)
	}
	defer mem.Close()

	led := ledger.New(mem, log)
	paper := broker.New(broker.Config{
		StartingCash: cfg.Paper.StartingCash,
		MaxContracts: cfg.Paper.MaxContracts,
		RiskCap:      cfg.Paper.RiskCap,
	}, mem, log)

	orch := pipeline.NewOrchestrator(
		pipeline.OrchestratorConfig{
			MinSample:    cfg.Sizing.MinSample,
			StakeUSD:     cfg.Paper.StakeUSD,
			RecordTrades: false,
		},
		newAnalyzer(cfg, store, nil, nil, log),
		sizing.New(sizingConfig(cfg)),
		risk.New(risk.Config{SameGameCapUSD: cfg.Risk.SameGameCapUSD}),
		newReviewer(cfg, store, log),
		led,
		nil,
		nil,
		log,
	)

	bouncer := pipeline.NewBouncer(bouncerConfig(cfg), nil, log)
	runner := backtest.New(backtest.Config{N: n}, store, bouncer, orch, paper, log)

	res, err := runner.Run(ctx)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	notifier.PrintBacktest(res)
}
