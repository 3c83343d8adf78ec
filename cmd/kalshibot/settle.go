package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/kalshibot/internal/adapters/notify"
	"github.com/alejandrodnm/kalshibot/internal/ledger"
	"github.com/alejandrodnm/kalshibot/internal/ports"
	"github.com/alejandrodnm/kalshibot/internal/settle"
)

// runSettle walks the pending ledger rows once, settling whatever the
// outcome source reports as finalized.
func runSettle(ctx context.Context, led *ledger.Ledger, source ports.OutcomeSource, notifier *notify.Console, log *slog.Logger) {
	slog.Info("=== SETTLE MODE: checking pending trades ===")

	checker := settle.New(led, source, log)
	settled, summary, err := checker.Run(ctx)
	if err != nil {
		slog.Error("settlement pass failed", "err", err)
		os.Exit(1)
	}

	if err := notifier.NotifySettlements(ctx, settled, summary); err != nil {
		slog.Warn("notifier error", "err", err)
	}
}
