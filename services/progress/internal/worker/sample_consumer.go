package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SampleEvent is the payload published by the gateway for playback samples.
type SampleEvent struct {
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	VideoID    string `json:"video_id"`
	LastSecond int    `json:"last_second"`
	Percent    int    `json:"percent"`
	Completed  bool   `json:"completed"`
	CreatedAt  string `json:"created_at"`
}

// Consumer drains progress.samples and applies idempotent upserts to the DB.
type Consumer struct {
	Log  *zap.Logger
	DB   *pgxpool.Pool
	JS   nats.JetStreamContext
	Sub  *nats.Subscription
	Tick time.Duration

	BatchSize int
}

func NewConsumer(log *zap.Logger, nc *nats.Conn, pool *pgxpool.Pool) (*Consumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	sub, err := js.PullSubscribe("progress.samples", "progress_samples")
	if err != nil {
		return nil, err
	}
	return &Consumer{
		Log:       log,
		DB:        pool,
		JS:        js,
		Sub:       sub,
		Tick:      2 * time.Second,
		BatchSize: 100,
	}, nil
}

// Run fetches batches until ctx is cancelled. A batch is applied in a single
// transaction together with its processed_events markers, so redelivered
// messages are skipped instead of reapplied.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.Sub.Fetch(c.BatchSize, nats.MaxWait(c.Tick))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			c.Log.Warn("sample fetch failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		if err := c.applyBatch(ctx, msgs); err != nil {
			c.Log.Warn("sample batch failed", zap.Int("size", len(msgs)), zap.Error(err))
			nakAllWithBackoff(msgs)
			continue
		}
		ackAll(msgs)
	}
}

func (c *Consumer) applyBatch(ctx context.Context, msgs []*nats.Msg) error {
	tx, err := c.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range msgs {
		var ev SampleEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			// Poison message; mark it consumed so the batch can proceed.
			c.Log.Warn("invalid sample payload", zap.Error(err))
			continue
		}

		ct, err := tx.Exec(ctx,
			`INSERT INTO processed_events (event_id, subject, created_at, payload)
			 VALUES ($1,$2,$3,$4) ON CONFLICT (event_id) DO NOTHING`,
			ev.EventID, "progress.samples", ev.CreatedAt, m.Data)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			// Already processed on a previous delivery.
			continue
		}

		if err := applySample(ctx, tx, ev); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// applySample runs the clamped upsert into video_progress using the provided tx.
func applySample(ctx context.Context, tx pgx.Tx, ev SampleEvent) error {
	if ev.LastSecond < 0 {
		ev.LastSecond = 0
	}
	if ev.Percent < 0 {
		ev.Percent = 0
	}
	if ev.Percent > 100 {
		ev.Percent = 100
	}

	now := time.Now().UTC()
	var completedAt *time.Time
	if ev.Completed {
		completedAt = &now
	}

	_, err := tx.Exec(ctx, `
INSERT INTO video_progress (user_id, video_id, last_second, percent, completed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, video_id)
DO UPDATE SET
  last_second  = EXCLUDED.last_second,
  percent      = EXCLUDED.percent,
  completed_at = EXCLUDED.completed_at,
  updated_at   = EXCLUDED.updated_at`,
		ev.UserID, ev.VideoID, ev.LastSecond, ev.Percent, completedAt, now)
	return err
}

func ackAll(msgs []*nats.Msg) {
	for _, m := range msgs {
		_ = m.Ack()
	}
}

// nakAllWithBackoff requeues a failed batch with a redelivery delay that
// doubles per attempt, capped at 32s, so a struggling database is not hammered.
func nakAllWithBackoff(msgs []*nats.Msg) {
	for _, m := range msgs {
		delay := time.Second
		if md, err := m.Metadata(); err == nil {
			n := md.NumDelivered
			if n > 5 {
				n = 5
			}
			delay = time.Second << n
		}
		_ = m.NakWithDelay(delay)
	}
}
