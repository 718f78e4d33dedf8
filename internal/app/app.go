// Package app assembles the services shared by the API and worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"schoolinfo/internal/attendance"
	"schoolinfo/internal/auth"
	"schoolinfo/internal/cache"
	"schoolinfo/internal/collation"
	"schoolinfo/internal/config"
	"schoolinfo/internal/notify"
	"schoolinfo/internal/queue"
	"schoolinfo/internal/school"
	"schoolinfo/internal/store"
)

const relayInterval = 30 * time.Second

// App is the wired object graph.
type App struct {
	Config     config.App
	DB         *store.DB
	Redis      *store.Redis
	Queue      queue.Queue
	Auth       *auth.Service
	School     *school.Service
	Attendance *attendance.Service
	Processor  *attendance.Processor
	Log        *zap.Logger
}

// Build connects to Postgres and Redis, runs migrations when enabled and
// wires every service.
func Build(ctx context.Context, cfg config.App, log *zap.Logger) (*App, error) {
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := store.Migrate(db.Client); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
	}
	rdb := store.NewRedis(cfg.RedisAddr)

	var c cache.Cache
	switch cfg.CacheBackend {
	case "memory":
		c = cache.NewMemory()
	default:
		c = cache.NewRedis(rdb.Client, "")
	}

	var q queue.Queue
	switch cfg.QueueBackend {
	case "memory":
		q = queue.NewInMemory(64)
	default:
		q = queue.NewRedisQueue(rdb.Client, "")
	}

	sorter := collation.New(cfg.CollationLocale)
	schools := school.NewService(school.NewRepository(db.Client, cfg.DefaultSchoolID), c, cfg.CacheTTL, sorter, log)
	att := attendance.NewService(attendance.NewRepository(db.Client), c, cfg.CacheTTL, sorter, q, log)
	notifier := notify.New(cfg.SendgridAPIKey, "School Information System", cfg.MailFrom, log)

	log.Info("services wired",
		zap.String("cache", cfg.CacheBackend),
		zap.String("queue", cfg.QueueBackend),
		zap.String("collation", cfg.CollationLocale),
	)
	return &App{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Queue:      q,
		Auth:       auth.NewService(auth.NewRepository(db.Client), cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, log),
		School:     schools,
		Attendance: att,
		Processor:  attendance.NewProcessor(att, schools, notifier, log),
		Log:        log,
	}, nil
}

// RunWorker consumes the queue with the attendance processor until ctx is done.
func (a *App) RunWorker(ctx context.Context) error {
	return queue.Run(ctx, a.Queue, a.Processor.Handle, a.Log.Named("worker"))
}

// RunRelay republishes approval events whose publish failed, until ctx is done.
func (a *App) RunRelay(ctx context.Context) {
	a.Attendance.RunRelay(ctx, relayInterval)
}

// Close releases the connections.
func (a *App) Close() {
	if err := a.Redis.Close(); err != nil {
		a.Log.Warn("close redis", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Log.Warn("close db", zap.Error(err))
	}
}
