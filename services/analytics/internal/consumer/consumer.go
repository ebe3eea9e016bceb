// Package consumer manages the JetStream pull consumer for the analytics sink.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/course-platform/services/analytics/internal/handler"
)

const (
	analyticsStream   = "ANALYTICS"
	analyticsConsumer = "analytics_processor"
)

// Consumer wraps a JetStream pull subscription and dispatches messages.
type Consumer struct {
	sub        *nats.Subscription
	dispatcher *handler.Dispatcher
	batchSize  int
	maxWait    time.Duration
	log        *zap.Logger
}

// New ensures the ANALYTICS stream over analytics.> and returns a Consumer
// ready to call Run.
func New(nc *nats.Conn, d *handler.Dispatcher, batchSize int, maxWait time.Duration, log *zap.Logger) (*Consumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}

	if err := ensureStream(js); err != nil {
		return nil, err
	}

	sub, err := js.PullSubscribe(">", analyticsConsumer, nats.BindStream(analyticsStream))
	if err != nil {
		return nil, err
	}

	return &Consumer{
		sub:        sub,
		dispatcher: d,
		batchSize:  batchSize,
		maxWait:    maxWait,
		log:        log,
	}, nil
}

// Run processes messages until ctx is cancelled. Capture is fire-and-forget,
// so every delivery is acked; PostHog batching absorbs the rest.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.maxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			c.log.Error("analytics fetch failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			c.dispatcher.Dispatch(msg)
			if err := msg.Ack(); err != nil {
				c.log.Warn("analytics ack failed", zap.Error(err))
			}
		}
	}
}

func ensureStream(js nats.JetStreamContext) error {
	cfg := &nats.StreamConfig{
		Name:      analyticsStream,
		Subjects:  []string{"analytics.>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	}

	_, err := js.AddStream(cfg)
	if err == nil {
		return nil
	}
	if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		_, err = js.UpdateStream(cfg)
	}
	return err
}
