package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"tradehub/services/pipeline/internal/config"
	"tradehub/services/pipeline/internal/job"
	"tradehub/services/pipeline/internal/middleware"
	"tradehub/services/pipeline/internal/retrieval"
)

// Resolver answers a search query against the vector store.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*retrieval.Result, error)
}

// SearchConsumer processes search jobs and publishes the answer as a status
// event keyed by the searchId. Like the content consumer it acknowledges
// every message; a failed search is reported, not redelivered.
type SearchConsumer struct {
	resolver Resolver
	events   EventSink
}

func NewSearchConsumer(resolver Resolver, events EventSink) *SearchConsumer {
	return &SearchConsumer{resolver: resolver, events: events}
}

func (c *SearchConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload job.SearchJob
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("poison pill: invalid search job json", "error", err)
		return nil
	}

	ctx := middleware.WithCorrelationID(context.Background(), payload.SearchID)

	if err := payload.Validate(); err != nil {
		slog.ErrorContext(ctx, "search job failed validation", "search_id", payload.SearchID, "error", err)
		c.events.PublishStatus(ctx, config.TopicSearchStatus, StatusEvent{
			CorrelationID: payload.SearchID,
			Status:        EventFailed,
			Message:       err.Error(),
		})
		return nil
	}

	slog.InfoContext(ctx, "processing search job", "search_id", payload.SearchID, "query", payload.Query)

	result, err := c.resolver.Resolve(ctx, payload.Query)
	if err != nil {
		slog.ErrorContext(ctx, "search job failed", "search_id", payload.SearchID, "error", err)
		c.events.PublishStatus(ctx, config.TopicSearchStatus, StatusEvent{
			CorrelationID: payload.SearchID,
			Status:        EventFailed,
			Message:       "Search processing failed: " + err.Error(),
		})
		return nil
	}

	c.events.PublishStatus(ctx, config.TopicSearchStatus, StatusEvent{
		CorrelationID: payload.SearchID,
		Status:        EventCompleted,
		Message:       "Search completed successfully",
		Data: map[string]interface{}{
			"text":       result.Text,
			"videoLinks": result.VideoLinks,
			"matchCount": result.MatchCount,
			"topScore":   result.TopScore,
		},
	})

	slog.InfoContext(ctx, "search job completed", "search_id", payload.SearchID, "matches", result.MatchCount)
	return nil
}
