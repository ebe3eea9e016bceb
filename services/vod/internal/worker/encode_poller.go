package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/services/vod/internal/cache"
	"github.com/example/course-platform/services/vod/internal/provider"
)

const (
	streamName  = "VOD_JOBS"
	pollSubject = "vod.encode.poll"
	dlqSubject  = "vod.dlq"
)

// PollJob asks the poller to watch one provider video until it reaches a
// terminal encode state.
type PollJob struct {
	VideoGUID string `json:"video_guid"`
}

// EncodePoller drains vod.encode.poll. Each delivery checks the provider
// once; non-terminal states are redelivered after PollInterval until
// MaxAttempts, then the job lands on the DLQ.
type EncodePoller struct {
	Log       *zap.Logger
	JS        nats.JetStreamContext
	Provider  provider.VideoAPI
	Cache     cache.StatusCache
	Analytics *analytics.Publisher

	PollInterval time.Duration
	MaxAttempts  int
}

func NewEncodePoller(log *zap.Logger, nc *nats.Conn, api provider.VideoAPI, sc cache.StatusCache, pub *analytics.Publisher) (*EncodePoller, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &EncodePoller{
		Log:          log,
		JS:           js,
		Provider:     api,
		Cache:        sc,
		Analytics:    pub,
		PollInterval: 3 * time.Second,
		MaxAttempts:  60,
	}, nil
}

func (p *EncodePoller) EnsureStream(ctx context.Context) error {
	info, err := p.JS.StreamInfo(streamName)
	if err == nil {
		for _, s := range info.Config.Subjects {
			if s == "vod.>" {
				return nil
			}
		}
		cfg := info.Config
		cfg.Subjects = []string{"vod.>"}
		_, err := p.JS.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = p.JS.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"vod.>"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	return err
}

// Enqueue schedules polling for a freshly created provider video.
func (p *EncodePoller) Enqueue(videoGUID string) error {
	b, _ := json.Marshal(PollJob{VideoGUID: videoGUID})
	_, err := p.JS.Publish(pollSubject, b)
	return err
}

func (p *EncodePoller) Run(ctx context.Context) error {
	if err := p.EnsureStream(ctx); err != nil {
		return err
	}

	sub, err := p.JS.PullSubscribe(pollSubject, "vod_encode_poll")
	if err != nil {
		return err
	}

	p.Log.Info("encode poller started", zap.String("subject", pollSubject))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			return err
		}
		for _, m := range msgs {
			p.handleMsg(ctx, m)
		}
	}
}

func (p *EncodePoller) handleMsg(ctx context.Context, m *nats.Msg) {
	md, _ := m.Metadata()
	attempt := uint64(1)
	if md != nil {
		attempt = md.NumDelivered
	}

	var job PollJob
	if err := json.Unmarshal(m.Data, &job); err != nil || job.VideoGUID == "" {
		p.Log.Warn("bad poll payload", zap.Error(err))
		_ = m.Ack()
		return
	}

	if p.MaxAttempts > 0 && int(attempt) > p.MaxAttempts {
		p.publishDLQ(m.Data, fmt.Sprintf("encode not finished after %d polls", p.MaxAttempts))
		_ = m.Ack()
		return
	}

	info, err := p.Provider.GetVideo(ctx, job.VideoGUID)
	if err != nil {
		p.Log.Warn("provider poll failed", zap.String("video_guid", job.VideoGUID), zap.Uint64("attempt", attempt), zap.Error(err))
		_ = m.NakWithDelay(p.PollInterval)
		return
	}

	if err := p.Cache.Set(ctx, info); err != nil {
		p.Log.Warn("status cache set failed", zap.String("video_guid", job.VideoGUID), zap.Error(err))
	}

	switch {
	case info.Ready():
		p.Log.Info("video transcoded",
			zap.String("video_guid", job.VideoGUID),
			zap.Int("length_seconds", info.Length))
		p.Analytics.Publish(analytics.SubjectVideoTranscoded, "vod.video_transcoded", "", map[string]any{
			"video_guid":     job.VideoGUID,
			"length_seconds": info.Length,
		})
		_ = m.Ack()
	case info.Failed():
		p.publishDLQ(m.Data, "provider reported encode error")
		_ = m.Ack()
	default:
		_ = m.NakWithDelay(p.PollInterval)
	}
}

func (p *EncodePoller) publishDLQ(data []byte, reason string) {
	msg := map[string]any{"subject": pollSubject, "reason": reason, "payload": json.RawMessage(data)}
	b, _ := json.Marshal(msg)
	if _, err := p.JS.Publish(dlqSubject, b); err != nil {
		p.Log.Warn("dlq publish failed", zap.Error(err))
	}
}
