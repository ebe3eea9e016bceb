// Package handler routes analytics events from NATS to PostHog captures.
package handler

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// CaptureClient is the slice of the PostHog client the dispatcher needs.
type CaptureClient interface {
	Capture(distinctID, event string, props map[string]any)
	Identify(userID string, traits map[string]any)
}

// event is the canonical envelope every service publishes on analytics.*.
type event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties"`
}

// Dispatcher routes incoming NATS messages to the correct PostHog call.
type Dispatcher struct {
	ph  CaptureClient
	log *zap.Logger
}

func New(ph CaptureClient, log *zap.Logger) *Dispatcher {
	return &Dispatcher{ph: ph, log: log}
}

// Dispatch captures one message. Unknown subjects are logged and skipped; the
// caller acks regardless so nothing replays forever.
func (d *Dispatcher) Dispatch(msg *nats.Msg) {
	var ev event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		d.log.Warn("bad analytics payload", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}

	distinctID := ev.UserID
	if distinctID == "" {
		distinctID = "anonymous"
	}

	switch msg.Subject {
	case "analytics.auth.registered":
		d.ph.Identify(ev.UserID, map[string]any{
			"username":   ev.Properties["username"],
			"created_at": ev.OccurredAt,
		})
		d.ph.Capture(distinctID, "user_registered", ev.Properties)
	case "analytics.auth.logged_in":
		d.ph.Capture(distinctID, "user_logged_in", nil)
	case "analytics.playback.started":
		d.ph.Capture(distinctID, "playback_started", ev.Properties)
	case "analytics.playback.completed":
		d.ph.Capture(distinctID, "video_completed", ev.Properties)
	case "analytics.catalog.course_viewed":
		d.ph.Capture(distinctID, "course_viewed", ev.Properties)
	case "analytics.vod.video_uploaded":
		d.ph.Capture(distinctID, "video_uploaded", ev.Properties)
	case "analytics.vod.video_transcoded":
		// Operational rather than user-scoped; attribute to the platform.
		d.ph.Capture("platform", "video_transcoded", ev.Properties)
	default:
		d.log.Debug("unhandled analytics subject", zap.String("subject", msg.Subject))
	}
}
