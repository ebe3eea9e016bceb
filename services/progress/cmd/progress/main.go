package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/db"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/natsconn"
	"github.com/example/course-platform/internal/platform/run"
	progressconfig "github.com/example/course-platform/services/progress/internal/config"
	"github.com/example/course-platform/services/progress/internal/handlers"
	progressstore "github.com/example/course-platform/services/progress/internal/store"
	"github.com/example/course-platform/services/progress/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	pool, err := db.Open(context.Background())
	if err != nil {
		log.Error("db open", zap.Error(err))
		run.Exit(1)
	}
	defer pool.Close()

	svcCfg := progressconfig.Load()
	repo := progressstore.NewPostgresRepository(pool)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		return pool.Ping(context.Background())
	}})

	r.Put("/v1/progress", handlers.Upsert(repo, log))
	r.Get("/v1/progress", handlers.List(repo, log))
	r.Get("/v1/continue-watching", handlers.ContinueWatching(repo, log))

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		nc, err := natsconn.Connect(natsconn.Options{URL: svcCfg.NATSURL})
		if err != nil {
			log.Warn("nats connect failed, sample consumer disabled", zap.Error(err))
		} else {
			defer nc.Close()
			consumer, err := worker.NewConsumer(log, nc, pool)
			if err != nil {
				log.Warn("sample consumer init failed", zap.Error(err))
			} else {
				go consumer.Run(ctx)
			}
		}

		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
