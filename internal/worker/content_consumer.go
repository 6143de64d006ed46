package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nsqio/go-nsq"

	"tradehub/services/pipeline/internal/config"
	"tradehub/services/pipeline/internal/embedding"
	"tradehub/services/pipeline/internal/job"
	"tradehub/services/pipeline/internal/middleware"
	"tradehub/services/pipeline/internal/provider"
	"tradehub/services/pipeline/internal/retry"
	"tradehub/services/pipeline/internal/text"
)

// VectorWriter is the embedding pipeline surface the consumer depends on.
type VectorWriter interface {
	EmbedAndStore(ctx context.Context, content embedding.Content, chunks []string) (int, error)
}

// MediaFetcher downloads remote media to a scratch file.
type MediaFetcher interface {
	Download(ctx context.Context, url string) (path string, sizeMB float64, err error)
	Cleanup(ctx context.Context, path string)
}

// StatusUpdater persists the terminal status of a content item.
type StatusUpdater interface {
	SetStatus(ctx context.Context, contentID, status string) error
}

type ContentConsumerConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	Separators         []string
	MediaSizeCeilingMB float64
	Retry              retry.Policy
}

// ContentConsumer processes content-embedding jobs: normalize, transcribe
// media when present, chunk, embed, upsert, then persist a terminal status
// and publish exactly one status event. Every message is acknowledged no
// matter the outcome; redelivery is reserved for process crashes.
type ContentConsumer struct {
	writer      VectorWriter
	transcriber provider.Transcriber
	fetcher     MediaFetcher
	statuses    StatusUpdater
	events      EventSink
	cfg         ContentConsumerConfig
}

func NewContentConsumer(
	writer VectorWriter,
	transcriber provider.Transcriber,
	fetcher MediaFetcher,
	statuses StatusUpdater,
	events EventSink,
	cfg ContentConsumerConfig,
) *ContentConsumer {
	return &ContentConsumer{
		writer:      writer,
		transcriber: transcriber,
		fetcher:     fetcher,
		statuses:    statuses,
		events:      events,
		cfg:         cfg,
	}
}

func (c *ContentConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload job.ContentEmbedJob
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison pill: undecodable body, drop without retry
		slog.Error("poison pill: invalid content job json", "error", err)
		return nil
	}

	ctx := middleware.WithCorrelationID(context.Background(), payload.OwnerID)

	if err := payload.Validate(); err != nil {
		slog.ErrorContext(ctx, "content job failed validation", "content_id", payload.ContentID, "error", err)
		c.fail(ctx, &payload, err)
		return nil
	}

	slog.InfoContext(ctx, "processing content job", "content_id", payload.ContentID, "kind", payload.ContentKind)

	if err := c.process(ctx, &payload); err != nil {
		slog.ErrorContext(ctx, "content job failed", "content_id", payload.ContentID, "error", err)
		c.fail(ctx, &payload, err)
	}

	// Always FIN: business failures are terminal, not redeliverable.
	return nil
}

func (c *ContentConsumer) process(ctx context.Context, payload *job.ContentEmbedJob) error {
	var body string
	switch payload.ContentKind {
	case job.KindVideo, job.KindAudio:
		body = c.transcribe(ctx, payload)
	default:
		body = payload.RawText
	}

	title := payload.Title
	if title == "" {
		title = "Untitled"
	}

	if strings.TrimSpace(body) == "" {
		slog.WarnContext(ctx, "no meaningful content to process", "content_id", payload.ContentID)
		if err := c.statuses.SetStatus(ctx, payload.ContentID, job.StatusCompleted); err != nil {
			return err
		}
		c.events.PublishStatus(ctx, config.TopicContentStatus, StatusEvent{
			CorrelationID: payload.OwnerID,
			Status:        EventCompleted,
			Message:       "Content processed but no content found",
			Data:          map[string]interface{}{"contentId": payload.ContentID},
		})
		return nil
	}

	fullContent := fmt.Sprintf("Title: %s\n\nContent: %s", title, body)
	chunks := text.Split(fullContent, c.cfg.ChunkSize, c.cfg.ChunkOverlap, c.cfg.Separators)
	slog.InfoContext(ctx, "content chunked", "content_id", payload.ContentID, "chunks", len(chunks))

	count, err := c.writer.EmbedAndStore(ctx, embedding.Content{
		ContentID: payload.ContentID,
		Kind:      payload.ContentKind,
		Title:     title,
		MediaURL:  payload.MediaURL,
		OwnerID:   payload.OwnerID,
		Tags:      payload.Tags,
	}, chunks)
	if err != nil {
		return err
	}

	if err := c.statuses.SetStatus(ctx, payload.ContentID, job.StatusCompleted); err != nil {
		return err
	}

	c.events.PublishStatus(ctx, config.TopicContentStatus, StatusEvent{
		CorrelationID: payload.OwnerID,
		Status:        EventCompleted,
		Message:       fmt.Sprintf("Content processed successfully. Created %d embeddings from %d chunks.", count, len(chunks)),
		Data: map[string]interface{}{
			"contentId":       payload.ContentID,
			"chunksCount":     len(chunks),
			"embeddingsCount": count,
		},
	})

	slog.InfoContext(ctx, "content job completed", "content_id", payload.ContentID, "vectors", count)
	return nil
}

// transcribe turns remote media into text, degrading to a placeholder
// instead of failing the job: an oversized file, a failed download and an
// exhausted transcription quota all produce a usable stand-in string. The
// scratch file is removed on every exit path.
func (c *ContentConsumer) transcribe(ctx context.Context, payload *job.ContentEmbedJob) string {
	kind := strings.ToLower(payload.ContentKind)

	path, sizeMB, err := c.fetcher.Download(ctx, payload.MediaURL)
	if err != nil {
		slog.ErrorContext(ctx, "media download failed", "url", payload.MediaURL, "error", err)
		return fmt.Sprintf("[%s could not be fetched - content will be processed without transcription]", payload.ContentKind)
	}
	defer c.fetcher.Cleanup(ctx, path)

	if sizeMB > c.cfg.MediaSizeCeilingMB {
		slog.WarnContext(ctx, "media too large, skipping transcription",
			"url", payload.MediaURL, "size_mb", fmt.Sprintf("%.2f", sizeMB))
		return fmt.Sprintf("[Large %s file - transcription skipped to preserve API quota]", kind)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read downloaded media", "path", path, "error", err)
		return fmt.Sprintf("[%s could not be fetched - content will be processed without transcription]", payload.ContentKind)
	}

	mimeType := "video/mp4"
	if payload.ContentKind == job.KindAudio {
		mimeType = "audio/mp3"
	}

	var transcription string
	err = retry.Do(ctx, c.cfg.Retry, "transcription", func(ctx context.Context) error {
		var trErr error
		transcription, trErr = c.transcriber.Transcribe(ctx, data, mimeType)
		return trErr
	})
	if err != nil {
		slog.ErrorContext(ctx, "transcription failed", "url", payload.MediaURL, "error", err)
		return fmt.Sprintf("[%s transcription failed due to API quota limits - content will be processed without transcription]", payload.ContentKind)
	}

	if strings.TrimSpace(transcription) == "" {
		slog.WarnContext(ctx, "empty transcription received", "url", payload.MediaURL)
		return fmt.Sprintf("[%s transcription failed - empty response]", payload.ContentKind)
	}
	if strings.Contains(transcription, "[No speech detected]") {
		return "[No speech content detected in media]"
	}

	return strings.TrimSpace(transcription)
}

func (c *ContentConsumer) fail(ctx context.Context, payload *job.ContentEmbedJob, cause error) {
	if payload.ContentID != "" {
		if err := c.statuses.SetStatus(ctx, payload.ContentID, job.StatusFailed); err != nil {
			slog.ErrorContext(ctx, "failed to persist FAILED status", "content_id", payload.ContentID, "error", err)
		}
	}
	c.events.PublishStatus(ctx, config.TopicContentStatus, StatusEvent{
		CorrelationID: payload.OwnerID,
		Status:        EventFailed,
		Message:       fmt.Sprintf("Processing failed: %v", cause),
		Data:          map[string]interface{}{"contentId": payload.ContentID},
	})
}
