package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tradehub/services/pipeline/internal/embedding"
	"tradehub/services/pipeline/internal/retrieval"
	"tradehub/services/pipeline/internal/worker"
)

// Mocks

type MockVectorWriter struct{ mock.Mock }

func (m *MockVectorWriter) EmbedAndStore(ctx context.Context, content embedding.Content, chunks []string) (int, error) {
	args := m.Called(ctx, content, chunks)
	return args.Int(0), args.Error(1)
}

type MockTranscriber struct{ mock.Mock }

func (m *MockTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	args := m.Called(ctx, data, mimeType)
	return args.String(0), args.Error(1)
}

type MockFetcher struct{ mock.Mock }

func (m *MockFetcher) Download(ctx context.Context, url string) (string, float64, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Get(1).(float64), args.Error(2)
}

func (m *MockFetcher) Cleanup(ctx context.Context, path string) {
	m.Called(ctx, path)
}

type MockStatusUpdater struct{ mock.Mock }

func (m *MockStatusUpdater) SetStatus(ctx context.Context, contentID, status string) error {
	args := m.Called(ctx, contentID, status)
	return args.Error(0)
}

type MockEventSink struct{ mock.Mock }

func (m *MockEventSink) PublishStatus(ctx context.Context, topic string, event worker.StatusEvent) {
	m.Called(ctx, topic, event)
}

type MockResolver struct{ mock.Mock }

func (m *MockResolver) Resolve(ctx context.Context, query string) (*retrieval.Result, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retrieval.Result), args.Error(1)
}
