package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"schoolinfo/internal/app"
	"schoolinfo/internal/config"
	"schoolinfo/internal/logging"
)

// Worker consumes attendance approvals, recomputes recaps and notifies parents.
func main() {
	cfg := config.Load()
	log := logging.Must(cfg.Production())
	defer func() { _ = log.Sync() }()

	if cfg.QueueBackend == "memory" {
		log.Warn("QUEUE_BACKEND=memory is consumed by the api process; worker has nothing to do")
		return
	}

	if err := run(cfg, log); err != nil {
		log.Error("worker failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.App, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.RunWorker(ctx)
}
