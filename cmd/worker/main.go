package main

import (
	"context"

	"github.com/stratmarket/engine/config"
	"github.com/stratmarket/engine/internal/graceful"
	"github.com/stratmarket/engine/internal/logging"
	"github.com/stratmarket/engine/internal/scheduler"
	"github.com/stratmarket/engine/internal/storage/postgres"
)

// The worker runs the trigger scheduler without the HTTP surface, for
// deployments that separate timers from the API. It fires callbacks at the
// configured execute endpoint like any other client.
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

	sched := scheduler.NewScheduler(db, logger)
	if err := sched.Restore(ctx); err != nil {
		logger.Fatalf("Failed to restore trigger registry: %v", err)
	}
	sched.Start()
	logger.Info("trigger worker started")

	graceful.HandleSignals(func() {
		logger.Info("got exit signal, will stop after in-flight callbacks finish...")
		sched.Stop()
	})
}
