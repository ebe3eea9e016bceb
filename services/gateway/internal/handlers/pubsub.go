package handlers

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// ErrAsyncPublishDisabled signals the caller to fall back to a synchronous
// write against the owning service.
var ErrAsyncPublishDisabled = errors.New("async publish is disabled")

// EventPublisher pushes write events onto JetStream so the owning service can
// apply them off the request path. GATEWAY_ASYNC_WRITES=0 turns it off, which
// forces every write through the synchronous fallback.
type EventPublisher struct {
	js          nats.JetStreamContext
	asyncWrites bool
}

func NewEventPublisher(js nats.JetStreamContext) *EventPublisher {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("GATEWAY_ASYNC_WRITES")))
	return &EventPublisher{
		js:          js,
		asyncWrites: v != "0" && v != "false" && v != "no",
	}
}

func (p *EventPublisher) Enabled() bool {
	return p != nil && p.js != nil && p.asyncWrites
}

// PublishJSON stamps an event ID and timestamp into payload and publishes it.
// The returned event ID lets callers correlate the async write in logs.
func (p *EventPublisher) PublishJSON(subject string, payload map[string]any) (string, error) {
	if !p.Enabled() {
		return "", ErrAsyncPublishDisabled
	}

	eventID := uuid.NewString()
	payload["event_id"] = eventID
	if _, ok := payload["created_at"]; !ok {
		payload["created_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if _, err := p.js.Publish(subject, body, nats.MsgId(eventID)); err != nil {
		return "", err
	}
	return eventID, nil
}
