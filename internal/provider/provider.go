// Package provider defines the narrow interfaces the pipeline uses to talk
// to external AI and vector services, plus the error taxonomy shared by the
// retry engine and the consumers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Embedder turns a batch of texts into float vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Transcriber extracts spoken content from a media file.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Match is a scored hit returned by the vector store.
type Match struct {
	ID       string
	Score    float32
	Metadata map[string]interface{}
}

// Record is one embedding plus metadata, keyed by a stable id so that
// re-processing the same content overwrites instead of duplicating.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]interface{}
}

// VectorStore writes records and answers nearest-neighbour queries.
type VectorStore interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// QuotaError signals a provider-side rate/quota rejection. It is the only
// error kind the retry engine retries. RetryAfter carries the provider's
// suggested wait, zero when the provider gave none.
type QuotaError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *QuotaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider quota exhausted: %v", e.Err)
	}
	return "provider quota exhausted"
}

func (e *QuotaError) Unwrap() error { return e.Err }

// IsQuota reports whether err is, or wraps, a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// RetryAfterHint extracts the provider-suggested delay from err, zero when
// absent or when err is not a quota error.
func RetryAfterHint(err error) time.Duration {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe.RetryAfter
	}
	return 0
}
