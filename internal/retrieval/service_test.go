package retrieval_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradehub/services/pipeline/internal/provider"
	"tradehub/services/pipeline/internal/retrieval"
	"tradehub/services/pipeline/internal/retry"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockCompleter struct{ mock.Mock }

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) Upsert(ctx context.Context, records []provider.Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]provider.Match, error) {
	args := m.Called(ctx, vector, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Match), args.Error(1)
}

func testConfig() retrieval.Config {
	return retrieval.Config{
		TopK:              10,
		ContextLimit:      5,
		PrimaryThreshold:  0.30,
		FallbackThreshold: 0.15,
		Retry:             retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}
}

func match(id string, score float32, meta map[string]interface{}) provider.Match {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return provider.Match{ID: id, Score: score, Metadata: meta}
}

func TestResolve_PrimaryStageHit_NoRefinement(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCompleter)
	s := new(MockVectorStore)

	e.On("Embed", mock.Anything, []string{"fix boiler"}).Return([][]float32{{0.1, 0.2}}, nil).Once()
	s.On("Query", mock.Anything, []float32{0.1, 0.2}, 10).Return([]provider.Match{
		match("a-chunk-0", 0.5, map[string]interface{}{"title": "Boilers", "text": "bleed the valve"}),
	}, nil).Once()
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "bleed the valve")
	})).Return("Here is how to fix it.", nil).Once()

	svc := retrieval.NewService(e, c, s, testConfig(), nil)
	res, err := svc.Resolve(context.Background(), "fix boiler")

	require.NoError(t, err)
	assert.Equal(t, "Here is how to fix it.", res.Text)
	assert.Equal(t, 1, res.MatchCount)
	assert.InDelta(t, 0.5, res.TopScore, 0.001)
	c.AssertNumberOfCalls(t, "Complete", 1)
	e.AssertExpectations(t)
}

func TestResolve_FallbackThresholdSurfacesWeakMatch(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCompleter)
	s := new(MockVectorStore)

	weak := []provider.Match{match("a-chunk-0", 0.25, map[string]interface{}{"title": "T", "text": "weak hit"})}

	e.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil).Twice()
	s.On("Query", mock.Anything, mock.Anything, 10).Return(weak, nil).Twice()
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "query refiner")
	})).Return("refined version of the query", nil).Once()
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "weak hit")
	})).Return("answer from weak context", nil).Once()

	svc := retrieval.NewService(e, c, s, testConfig(), nil)
	res, err := svc.Resolve(context.Background(), "obscure question")

	require.NoError(t, err)
	assert.Equal(t, 1, res.MatchCount)
	assert.InDelta(t, 0.25, res.TopScore, 0.001)
	c.AssertExpectations(t)
}

func TestResolve_NoMatchesCompletesWithGeneralKnowledge(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCompleter)
	s := new(MockVectorStore)

	e.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil)
	s.On("Query", mock.Anything, mock.Anything, 10).Return([]provider.Match{}, nil)
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "query refiner")
	})).Return("refined", nil).Once()
	c.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "No relevant context found.")
	})).Return("General knowledge answer.", nil).Once()

	svc := retrieval.NewService(e, c, s, testConfig(), nil)
	res, err := svc.Resolve(context.Background(), "anything")

	require.NoError(t, err)
	assert.Zero(t, res.MatchCount)
	assert.NotEmpty(t, res.Text)
	assert.Empty(t, res.VideoLinks)
	assert.Zero(t, res.TopScore)
}

func TestResolve_SelectsTopFiveAndCollectsVideoLinks(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCompleter)
	s := new(MockVectorStore)

	matches := []provider.Match{
		match("m0", 0.35, map[string]interface{}{"title": "t0", "text": "c0", "contentKind": "VIDEO", "mediaUrl": "https://cdn/v0.mp4"}),
		match("m1", 0.90, map[string]interface{}{"title": "t1", "text": "c1", "contentKind": "VIDEO", "mediaUrl": "https://cdn/v1.mp4"}),
		match("m2", 0.40, map[string]interface{}{"title": "t2", "text": "c2", "contentKind": "ARTICLE"}),
		match("m3", 0.40, map[string]interface{}{"title": "t3", "text": "c3", "contentKind": "AUDIO", "mediaUrl": "https://cdn/a.mp3"}),
		match("m4", 0.60, map[string]interface{}{"title": "t4", "text": "c4", "contentKind": "VIDEO", "mediaUrl": "https://cdn/v4.mp4"}),
		match("m5", 0.33, map[string]interface{}{"title": "t5", "text": "c5", "contentKind": "ARTICLE"}),
	}

	e.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil)
	s.On("Query", mock.Anything, mock.Anything, 10).Return(matches, nil)
	c.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	svc := retrieval.NewService(e, c, s, testConfig(), nil)
	res, err := svc.Resolve(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, 5, res.MatchCount, "six qualify but the context is capped at five")
	assert.InDelta(t, 0.90, res.TopScore, 0.001)
	// Selection order is by descending score, ties kept in retrieval order.
	assert.Equal(t, []string{"https://cdn/v1.mp4", "https://cdn/v4.mp4", "https://cdn/v0.mp4"}, res.VideoLinks)
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	e := new(MockEmbedder)
	c := new(MockCompleter)
	s := new(MockVectorStore)

	e.On("Embed", mock.Anything, mock.Anything).Return([][]float32{{1}}, nil)
	s.On("Query", mock.Anything, mock.Anything, 10).Return(nil, assert.AnError)

	svc := retrieval.NewService(e, c, s, testConfig(), nil)
	_, err := svc.Resolve(context.Background(), "q")
	require.Error(t, err)
	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
