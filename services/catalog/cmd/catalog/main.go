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
	catalogconfig "github.com/example/course-platform/services/catalog/internal/config"
	"github.com/example/course-platform/services/catalog/internal/handlers"
	"github.com/example/course-platform/services/catalog/internal/outbox"
	"github.com/example/course-platform/services/catalog/internal/store"
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

	svcCfg := catalogconfig.Load()

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		return pool.Ping(context.Background())
	}})
	handlers.New(store.NewPostgresCatalogStore(pool), log).Routes(r)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		nc, err := natsconn.Connect(natsconn.Options{URL: svcCfg.NATSURL})
		if err != nil {
			log.Warn("nats connect failed, outbox publisher disabled", zap.Error(err))
		} else {
			defer nc.Close()
			pub, err := outbox.NewPublisher(log, pool, nc)
			if err != nil {
				log.Warn("outbox publisher init failed", zap.Error(err))
			} else {
				go func() {
					if err := pub.Run(ctx); err != nil {
						log.Warn("outbox publisher stopped", zap.Error(err))
					}
				}()
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
