// Package gemini adapts the Google generative AI SDK to the pipeline's
// provider interfaces: batch embeddings, prompt completion and media
// transcription. Quota rejections are surfaced as provider.QuotaError so the
// retry engine can back off.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"tradehub/services/pipeline/internal/provider"
)

type Client struct {
	client          *genai.Client
	embeddingModel  string
	generativeModel string
}

func New(ctx context.Context, apiKey, embeddingModel, generativeModel string) (*Client, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client:          c,
		embeddingModel:  embeddingModel,
		generativeModel: generativeModel,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Embed generates one vector per input text in a single batched call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := c.client.EmbeddingModel(c.embeddingModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, classify(err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(res.Embeddings))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		vectors[i] = e.Values
	}
	slog.DebugContext(ctx, "embeddings generated", "model", c.embeddingModel, "count", len(vectors))
	return vectors, nil
}

// Complete runs a single-turn text completion.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	gm := c.client.GenerativeModel(c.generativeModel)
	res, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classify(err)
	}
	return responseText(res), nil
}

// Transcribe asks the generative model for the spoken content of a media
// file, passed inline. The prompt requests raw spoken words only.
func (c *Client) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	kind := "video"
	if strings.HasPrefix(mimeType, "audio/") {
		kind = "audio"
	}
	prompt := fmt.Sprintf("Please provide a concise transcription of the spoken content in this %s. "+
		"Include only the actual spoken words without any commentary, timestamps, or formatting. "+
		"If no speech is detected, respond with \"[No speech detected]\".", kind)

	gm := c.client.GenerativeModel(c.generativeModel)
	res, err := gm.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(prompt),
	)
	if err != nil {
		return "", classify(err)
	}
	return strings.TrimSpace(responseText(res)), nil
}

func responseText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var _ provider.Embedder = (*Client)(nil)
var _ provider.Completer = (*Client)(nil)
var _ provider.Transcriber = (*Client)(nil)
