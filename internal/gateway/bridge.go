package gateway

import (
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"tradehub/services/pipeline/internal/worker"
)

// Bridge consumes status events from an ephemeral NSQ channel and forwards
// each one to the connection registered under its correlation key. The
// channel is ephemeral and the registry drops unmatched keys, so events for
// absent clients vanish instead of queueing up.
type Bridge struct {
	registry *Registry
}

func NewBridge(registry *Registry) *Bridge {
	return &Bridge{registry: registry}
}

func (b *Bridge) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var event worker.StatusEvent
	if err := json.Unmarshal(m.Body, &event); err != nil {
		slog.Error("poison pill: invalid status event json", "error", err)
		return nil
	}
	if event.CorrelationID == "" {
		slog.Warn("status event without correlation id dropped", "status", event.Status)
		return nil
	}

	if b.registry.Send(event.CorrelationID, m.Body) {
		slog.Debug("status event delivered", "correlation_id", event.CorrelationID, "status", event.Status)
	}
	return nil
}
