// Package media downloads remote media files to a scratch location so they
// can be handed to the transcription provider.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const bytesPerMB = 1024 * 1024

type Fetcher struct {
	client     *resty.Client
	scratchDir string
}

func NewFetcher(scratchDir string) *Fetcher {
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(0)
	return &Fetcher{client: client, scratchDir: scratchDir}
}

// Download fetches rawURL into the scratch directory and returns the local
// path plus the file size in megabytes. The caller owns the file and must
// call Cleanup on every exit path.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, float64, error) {
	if err := os.MkdirAll(f.scratchDir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create scratch dir: %w", err)
	}

	path := filepath.Join(f.scratchDir, uuid.New().String()+extension(rawURL))

	resp, err := f.client.R().
		SetContext(ctx).
		SetOutput(path).
		Get(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("download media: %w", err)
	}
	if resp.IsError() {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("download media: unexpected status %d", resp.StatusCode())
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat downloaded media: %w", err)
	}

	sizeMB := float64(info.Size()) / bytesPerMB
	slog.InfoContext(ctx, "media downloaded", "url", rawURL, "size_mb", fmt.Sprintf("%.2f", sizeMB))
	return path, sizeMB, nil
}

// Cleanup removes a downloaded scratch file. Failures are logged, never
// propagated; a leaked temp file must not fail a job.
func (f *Fetcher) Cleanup(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.ErrorContext(ctx, "failed to clean up scratch file", "path", path, "error", err)
		return
	}
	slog.DebugContext(ctx, "scratch file removed", "path", path)
}

// extension pulls the file extension out of a media URL, ignoring any query
// string, so the scratch file keeps a recognizable suffix.
func extension(rawURL string) string {
	trimmed := rawURL
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	ext := filepath.Ext(trimmed)
	if ext == "" || len(ext) > 8 {
		return ".bin"
	}
	return ext
}
