package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"tradehub/services/pipeline/internal/bus"
)

const (
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// StatusEvent is published exactly once per terminal job transition. It is
// ephemeral: if no gateway or client is listening it simply disappears.
type StatusEvent struct {
	CorrelationID string                 `json:"correlationId"`
	Status        string                 `json:"status"`
	Message       string                 `json:"message"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// EventSink publishes terminal status events for the gateway to fan out.
type EventSink interface {
	PublishStatus(ctx context.Context, topic string, event StatusEvent)
}

// EventPublisher emits StatusEvents on an NSQ topic. Publish failures are
// logged and swallowed: a broker hiccup on the notification path must never
// fail an otherwise-successful job.
type EventPublisher struct {
	publisher bus.Publisher
}

func NewEventPublisher(publisher bus.Publisher) *EventPublisher {
	return &EventPublisher{publisher: publisher}
}

func (p *EventPublisher) PublishStatus(ctx context.Context, topic string, event StatusEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal status event", "error", err, "correlation_id", event.CorrelationID)
		return
	}
	if err := p.publisher.Publish(topic, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish status event",
			"error", err, "topic", topic, "correlation_id", event.CorrelationID)
		return
	}
	slog.InfoContext(ctx, "status event published", "topic", topic, "status", event.Status)
}
