// Package embedding turns chunks into vectors in small paced batches and
// writes them to the vector store in larger ones. Batch sizes and pacing
// exist to stay under the embedding provider's rate limits; the retry
// engine absorbs the quota rejections that still get through.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradehub/services/pipeline/internal/job"
	"tradehub/services/pipeline/internal/provider"
	"tradehub/services/pipeline/internal/retry"
)

// Content carries the metadata stamped onto every vector record of one
// content item.
type Content struct {
	ContentID string
	Kind      string
	Title     string
	MediaURL  string
	OwnerID   string
	Tags      []string
}

type Config struct {
	EmbedBatchSize  int
	InterBatchDelay time.Duration
	UpsertBatchSize int
	Retry           retry.Policy
}

type Pipeline struct {
	embedder provider.Embedder
	store    provider.VectorStore
	cfg      Config
	now      func() time.Time
}

func NewPipeline(embedder provider.Embedder, store provider.VectorStore, cfg Config) *Pipeline {
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 3
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = 100
	}
	return &Pipeline{embedder: embedder, store: store, cfg: cfg, now: time.Now}
}

// EmbedAndStore embeds chunks batch by batch, assembles one record per
// chunk with the id "{contentId}-chunk-{index}", and upserts the records.
// Record ids are stable across replays, so redelivery overwrites rather
// than duplicates. Returns the number of vectors written.
func (p *Pipeline) EmbedAndStore(ctx context.Context, content Content, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	batches := (len(chunks) + p.cfg.EmbedBatchSize - 1) / p.cfg.EmbedBatchSize

	for i := 0; i < len(chunks); i += p.cfg.EmbedBatchSize {
		end := i + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		slog.InfoContext(ctx, "embedding batch",
			"content_id", content.ContentID, "batch", i/p.cfg.EmbedBatchSize+1, "batches", batches, "size", len(batch))

		var batchVectors [][]float32
		err := retry.Do(ctx, p.cfg.Retry, "embed batch", func(ctx context.Context) error {
			var embErr error
			batchVectors, embErr = p.embedder.Embed(ctx, batch)
			return embErr
		})
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", i, end-1, err)
		}
		vectors = append(vectors, batchVectors...)

		if end < len(chunks) && p.cfg.InterBatchDelay > 0 {
			select {
			case <-time.After(p.cfg.InterBatchDelay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}

	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := p.buildRecords(content, chunks, vectors)

	for i := 0; i < len(records); i += p.cfg.UpsertBatchSize {
		end := i + p.cfg.UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := p.store.Upsert(ctx, records[i:end]); err != nil {
			return 0, fmt.Errorf("upsert records %d-%d: %w", i, end-1, err)
		}
		slog.InfoContext(ctx, "upserted batch",
			"content_id", content.ContentID, "from", i, "to", end-1)
	}

	return len(records), nil
}

func (p *Pipeline) buildRecords(content Content, chunks []string, vectors [][]float32) []provider.Record {
	createdAt := p.now().UTC().Format(time.RFC3339)
	tags := content.Tags
	if tags == nil {
		tags = []string{}
	}

	records := make([]provider.Record, len(chunks))
	for i := range chunks {
		metadata := map[string]interface{}{
			"contentId":   content.ContentID,
			"chunkIndex":  i,
			"text":        chunks[i],
			"title":       content.Title,
			"tags":        tags,
			"contentKind": content.Kind,
			"ownerId":     content.OwnerID,
			"createdAt":   createdAt,
		}
		if content.Kind != job.KindArticle && content.MediaURL != "" {
			metadata["mediaUrl"] = content.MediaURL
		}

		records[i] = provider.Record{
			ID:       fmt.Sprintf("%s-chunk-%d", content.ContentID, i),
			Values:   vectors[i],
			Metadata: metadata,
		}
	}
	return records
}
