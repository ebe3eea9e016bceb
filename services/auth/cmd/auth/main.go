package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/db"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/natsconn"
	"github.com/example/course-platform/internal/platform/run"
	"github.com/example/course-platform/services/auth/internal/bootstrap"
	authconfig "github.com/example/course-platform/services/auth/internal/config"
	"github.com/example/course-platform/services/auth/internal/handlers"
	"github.com/example/course-platform/services/auth/internal/store"
	"github.com/example/course-platform/services/auth/internal/tokens"
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

	authCfg, err := authconfig.LoadAuth()
	if err != nil {
		log.Error("load auth config", zap.Error(err))
		run.Exit(1)
	}

	// Bootstrap admin (optional): promote an existing account on startup so a
	// fresh deployment always has an admin.
	if authCfg.BootstrapAdminUsername != "" {
		if err := bootstrap.PromoteAdmin(context.Background(), pool, authCfg.BootstrapAdminUsername); err != nil {
			log.Error("bootstrap admin", zap.Error(err))
			run.Exit(1)
		}
		log.Info("bootstrap admin ensured", zap.String("username", authCfg.BootstrapAdminUsername))
	}

	var pub *analytics.Publisher
	if nc, err := natsconn.Connect(natsconn.Options{}); err != nil {
		log.Warn("nats connect failed, analytics disabled", zap.Error(err))
	} else {
		defer nc.Close()
		if js, err := nc.JetStream(); err == nil {
			pub = analytics.New(js, log)
		}
	}

	h := &handlers.AuthHandlers{
		Store:     store.Store{DB: pool},
		Tokens:    tokens.Service{Secret: authCfg.JWTSecret, AccessTokenTTL: authCfg.AccessTokenTTL, RefreshTokenTTL: authCfg.RefreshTokenTTL},
		Cfg:       authCfg,
		Analytics: pub,
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		return pool.Ping(context.Background())
	}})
	h.Routes(r)

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
