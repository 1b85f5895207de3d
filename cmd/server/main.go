package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stratmarket/engine/config"
	"github.com/stratmarket/engine/internal/api"
	"github.com/stratmarket/engine/internal/chain"
	"github.com/stratmarket/engine/internal/executor"
	"github.com/stratmarket/engine/internal/graceful"
	"github.com/stratmarket/engine/internal/logging"
	"github.com/stratmarket/engine/internal/metrics"
	"github.com/stratmarket/engine/internal/payment"
	"github.com/stratmarket/engine/internal/scheduler"
	"github.com/stratmarket/engine/internal/storage/postgres"
)

func main() {
	ctx := context.Background()

	cfg, err := config.GetConfigure()
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(cfg.LogFormat)

	db, err := postgres.NewBackend(ctx, cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	chainClient, err := chain.NewEvmClient(ctx, logger, cfg.Chain.RPCURL, cfg.Chain.SignerKey, cfg.Chain.ChainID)
	if err != nil {
		logger.Fatalf("Failed to connect to chain RPC: %v", err)
	}

	orchestrator := executor.NewOrchestrator(chainClient, chain.DefaultRouters(), logger)

	facilitator := payment.NewFacilitatorClient(cfg.Facilitator.URL, logger)
	gate := payment.NewGate(facilitator, cfg.Facilitator.Network, logger)

	sched := scheduler.NewScheduler(db, logger)
	if err := sched.Restore(ctx); err != nil {
		logger.Fatalf("Failed to restore trigger registry: %v", err)
	}
	sched.Start()

	registry := metrics.NewRegistry(logger)

	server := api.NewServer(cfg, db, gate, orchestrator, sched, registry, logger)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return server.StartServer()
	})
	eg.Go(func() error {
		graceful.HandleSignals(func() {
			logger.Info("got exit signal, shutting down...")
			sched.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("server shutdown failed")
			}
		})
		return nil
	})
	if err := eg.Wait(); err != nil {
		logrus.Fatal(err)
	}
}
