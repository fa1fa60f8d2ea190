package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/veltapay/veltapay/internal/config"
	"github.com/veltapay/veltapay/internal/gateway"
	"github.com/veltapay/veltapay/internal/infra"
	"github.com/veltapay/veltapay/internal/ledger"
	"github.com/veltapay/veltapay/internal/logging"
	"github.com/veltapay/veltapay/internal/reconcile"
	"github.com/veltapay/veltapay/internal/wallet"
)

// Standalone reconciliation poller. Runs the same recovery pass as the API
// process, for deployments that prefer a single writer for stuck rows.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logger.Error("reconciler requires DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var gw gateway.Client
	if cfg.GatewayBaseURL != "" {
		tokens := gateway.NewCachedTokenProvider(
			cfg.GatewayBaseURL+"/v1/auth/token",
			cfg.GatewayClientID,
			cfg.GatewayClientSecret,
			cfg.GatewayTimeout,
		)
		gw = gateway.NewHTTPClient(cfg.GatewayBaseURL, tokens, cfg.GatewayTimeout)
	} else {
		gw = gateway.NewStatic()
	}

	rec := reconcile.New(
		ledger.NewPostgresLedger(db),
		wallet.NewPostgresStore(db),
		gw,
		cfg.PendingTTL,
		logger,
	)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	logger.Info("reconciler started", "interval", cfg.ReconcileInterval.String())
	rec.Loop(ctx, cfg.ReconcileInterval)
	logger.Info("reconciler exited cleanly")
}
