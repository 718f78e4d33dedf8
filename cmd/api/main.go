package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolinfo/internal/app"
	"schoolinfo/internal/config"
	"schoolinfo/internal/httpapi"
	"schoolinfo/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.Must(cfg.Production())
	defer func() { _ = log.Sync() }()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("http server failed", zap.Error(err))
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

	go a.RunRelay(ctx)

	// With the in-memory queue nothing else can consume, so process in-process.
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := a.RunWorker(ctx); err != nil {
				log.Error("in-process worker stopped", zap.Error(err))
			}
		}()
	}

	r := httpapi.New(httpapi.Deps{
		Config:     cfg,
		Auth:       a.Auth,
		School:     a.School,
		Attendance: a.Attendance,
		Probes: map[string]httpapi.Probe{
			"db":    a.DB.Healthy,
			"redis": a.Redis.Healthy,
		},
		Log: log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}
