package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/natsconn"
	"github.com/example/course-platform/internal/platform/run"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/vod/internal/cache"
	vodconfig "github.com/example/course-platform/services/vod/internal/config"
	"github.com/example/course-platform/services/vod/internal/handlers"
	"github.com/example/course-platform/services/vod/internal/provider"
	"github.com/example/course-platform/services/vod/internal/worker"
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

	vodCfg, err := vodconfig.Load()
	if err != nil {
		log.Error("load vod config", zap.Error(err))
		run.Exit(1)
	}

	statusCache, err := cache.NewRedisCache(vodCfg.RedisURL, vodCfg.StatusCacheTTL)
	if err != nil {
		log.Error("redis init", zap.Error(err))
		run.Exit(1)
	}

	api := provider.New(vodCfg.ProviderBaseURL, vodCfg.ProviderLibraryID, vodCfg.ProviderAPIKey)

	h := &handlers.Handlers{
		Provider:   api,
		Cache:      statusCache,
		Signer:     signing.New(vodCfg.PlaybackSecret),
		Log:        log,
		StreamHost: vodCfg.StreamHost,
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		return statusCache.Client.Ping(context.Background()).Err()
	}})
	h.Routes(r)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		nc, err := natsconn.Connect(natsconn.Options{URL: vodCfg.NATSURL})
		if err != nil {
			log.Warn("nats connect failed, encode poller disabled", zap.Error(err))
		} else {
			defer nc.Close()
			var pub *analytics.Publisher
			if js, err := nc.JetStream(); err == nil {
				pub = analytics.New(js, log)
			}
			h.Analytics = pub
			poller, err := worker.NewEncodePoller(log, nc, api, statusCache, pub)
			if err != nil {
				log.Warn("encode poller init failed", zap.Error(err))
			} else {
				h.Poller = poller
				go func() {
					if err := poller.Run(ctx); err != nil {
						log.Warn("encode poller stopped", zap.Error(err))
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
