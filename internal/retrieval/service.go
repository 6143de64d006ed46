// Package retrieval resolves search queries against the vector store with
// an escalating fallback strategy: original query, then an LLM-refined
// query, then a relaxed score threshold. Running out of matches is not an
// error; the answer falls back to the model's general knowledge.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tradehub/services/pipeline/internal/job"
	"tradehub/services/pipeline/internal/middleware"
	"tradehub/services/pipeline/internal/provider"
	"tradehub/services/pipeline/internal/retry"
)

const contextDelimiter = "\n\n---\n\n"

// Result is the final payload of a resolved search.
type Result struct {
	Text       string   `json:"text"`
	VideoLinks []string `json:"videoLinks"`
	MatchCount int      `json:"matchCount"`
	TopScore   float32  `json:"topScore"`
}

type Config struct {
	TopK              int
	ContextLimit      int
	PrimaryThreshold  float32
	FallbackThreshold float32
	Retry             retry.Policy
}

type Service struct {
	embedder  provider.Embedder
	completer provider.Completer
	store     provider.VectorStore
	cfg       Config
	logger    *QueryLogger
}

func NewService(embedder provider.Embedder, completer provider.Completer, store provider.VectorStore, cfg Config, logger *QueryLogger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = 5
	}
	return &Service{embedder: embedder, completer: completer, store: store, cfg: cfg, logger: logger}
}

// Resolve escalates through the fallback stages until one yields matches at
// or above its threshold, then asks the model to answer the original query
// against the selected context.
func (s *Service) Resolve(ctx context.Context, query string) (*Result, error) {
	start := time.Now()

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.store.Query(ctx, vector, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	qualifying := filterByScore(matches, s.cfg.PrimaryThreshold)

	if len(qualifying) == 0 {
		slog.InfoContext(ctx, "no primary matches, refining query", "query", query)

		refined, err := s.refineQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		refinedVector, err := s.embedQuery(ctx, refined)
		if err != nil {
			return nil, err
		}
		matches, err = s.store.Query(ctx, refinedVector, s.cfg.TopK)
		if err != nil {
			return nil, fmt.Errorf("query vector store with refined query: %w", err)
		}

		qualifying = filterByScore(matches, s.cfg.PrimaryThreshold)
		if len(qualifying) == 0 {
			slog.InfoContext(ctx, "relaxing score threshold",
				"threshold", s.cfg.FallbackThreshold, "candidates", len(matches))
			qualifying = filterByScore(matches, s.cfg.FallbackThreshold)
		}
	}

	selected := selectTop(qualifying, s.cfg.ContextLimit)

	contextBlock := noContextFound
	if len(selected) > 0 {
		blocks := make([]string, len(selected))
		for i, m := range selected {
			blocks[i] = fmt.Sprintf("Title: %s\n\nContent: %s", metaString(m, "title"), metaString(m, "text"))
		}
		contextBlock = strings.Join(blocks, contextDelimiter)
	}

	answer, err := s.complete(ctx, answerPrompt(query, contextBlock))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Text:       answer,
		VideoLinks: videoLinks(selected),
		MatchCount: len(selected),
	}
	if len(selected) > 0 {
		result.TopScore = selected[0].Score
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			NumResults:    result.MatchCount,
			TopScore:      result.TopScore,
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}

	return result, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var vectors [][]float32
	err := retry.Do(ctx, s.cfg.Retry, "embed query", func(ctx context.Context) error {
		var embErr error
		vectors, embErr = s.embedder.Embed(ctx, []string{query})
		return embErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: provider returned no vector")
	}
	return vectors[0], nil
}

func (s *Service) refineQuery(ctx context.Context, query string) (string, error) {
	var refined string
	err := retry.Do(ctx, s.cfg.Retry, "refine query", func(ctx context.Context) error {
		var llmErr error
		refined, llmErr = s.completer.Complete(ctx, refinePrompt(query))
		return llmErr
	})
	if err != nil {
		return "", fmt.Errorf("refine query: %w", err)
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		refined = query
	}
	return refined, nil
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := retry.Do(ctx, s.cfg.Retry, "answer query", func(ctx context.Context) error {
		var llmErr error
		answer, llmErr = s.completer.Complete(ctx, prompt)
		return llmErr
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

func filterByScore(matches []provider.Match, threshold float32) []provider.Match {
	var out []provider.Match
	for _, m := range matches {
		if m.Score >= threshold {
			out = append(out, m)
		}
	}
	return out
}

// selectTop orders matches by descending score, ties broken by original
// retrieval order, and keeps at most limit of them.
func selectTop(matches []provider.Match, limit int) []provider.Match {
	sorted := make([]provider.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func videoLinks(matches []provider.Match) []string {
	links := []string{}
	for _, m := range matches {
		if metaString(m, "contentKind") != job.KindVideo {
			continue
		}
		if url := metaString(m, "mediaUrl"); url != "" {
			links = append(links, url)
		}
	}
	return links
}

func metaString(m provider.Match, key string) string {
	if m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata[key].(string)
	return s
}
