package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/natsconn"
	"github.com/example/course-platform/internal/platform/run"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/gateway/internal/clients"
	gwconfig "github.com/example/course-platform/services/gateway/internal/config"
	"github.com/example/course-platform/services/gateway/internal/handlers"
	gwhttp "github.com/example/course-platform/services/gateway/internal/http"
	"github.com/example/course-platform/services/gateway/internal/session"
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

	gwCfg, err := gwconfig.Load()
	if err != nil {
		log.Error("load gateway config", zap.Error(err))
		run.Exit(1)
	}

	cache := handlers.NewTTLCache(gwCfg.CacheTTL)
	h := &handlers.Handlers{
		Catalog:     clients.NewCatalog(gwCfg.CatalogURL, nil),
		Progress:    clients.NewProgress(gwCfg.ProgressURL, nil),
		Auth:        clients.NewAuth(gwCfg.AuthURL, nil),
		Sessions:    session.NewSessions(gwCfg.SessionTTL),
		Cache:       cache,
		Signer:      signing.New(gwCfg.PlaybackSecret),
		Log:         log,
		PlayBaseURL: gwCfg.PlayBaseURL,
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{})
	limiter := gwhttp.NewRateLimiter(gwCfg.RateLimitPerSecond, gwCfg.RateLimitBurst)
	h.Routes(r, auth.JWTVerifier{Secret: []byte(gwCfg.JWTSecret)}, limiter.Middleware)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		nc, err := natsconn.Connect(natsconn.Options{URL: gwCfg.NATSURL})
		if err != nil {
			log.Warn("nats connect failed, async writes and cache invalidation disabled", zap.Error(err))
		} else {
			defer nc.Close()
			if err := cache.FlushOnCatalogEvents(nc); err != nil {
				log.Warn("catalog invalidation subscribe failed", zap.Error(err))
			}
			if js, err := nc.JetStream(); err == nil {
				h.Events = handlers.NewEventPublisher(js)
				h.Analytics = analytics.New(js, log)
			} else {
				log.Warn("jetstream unavailable", zap.Error(err))
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
