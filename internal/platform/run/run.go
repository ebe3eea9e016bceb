// Package run standardizes service lifecycle: signal handling, exit codes
// and the distinction between a clean shutdown and a crash.
package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// shutdownGrace is how long a service gets to wind down after a signal
// before the process gives up waiting.
const shutdownGrace = 15 * time.Second

type Runner struct {
	Logger *zap.Logger
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log}
}

// WithSignals runs start until it returns or the process receives SIGINT or
// SIGTERM. On a signal the context is cancelled and start gets a grace period
// to finish; http.ErrServerClosed counts as a clean exit.
func (r *Runner) WithSignals(start func(ctx context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case <-ctx.Done():
		r.Logger.Info("shutdown signal received")
		select {
		case err := <-errCh:
			return exitCode(r.Logger, err)
		case <-time.After(shutdownGrace):
			r.Logger.Warn("shutdown grace period exceeded")
			return 1
		}
	case err := <-errCh:
		return exitCode(r.Logger, err)
	}
}

func exitCode(log *zap.Logger, err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return 0
	}
	log.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
