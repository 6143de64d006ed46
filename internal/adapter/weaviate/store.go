// Package weaviate implements the pipeline's vector store on Weaviate.
// Object IDs are derived deterministically from the record id, so replaying
// the same job overwrites the existing vectors instead of duplicating them.
package weaviate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"tradehub/services/pipeline/internal/provider"
)

const ClassName = "ContentChunk"

// idNamespace seeds the SHA1 UUIDs derived from record ids. It must never
// change, or replays would stop overwriting earlier vectors.
var idNamespace = uuid.MustParse("8f3c1c52-8c2a-4c1f-9d55-4f7a9b1e6a10")

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Upsert(ctx context.Context, records []provider.Record) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, 0, len(records))
	for _, rec := range records {
		props := make(map[string]interface{}, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			props[k] = v
		}
		props["vectorId"] = rec.ID

		objects = append(objects, &models.Object{
			ID:         strfmt.UUID(uuid.NewSHA1(idNamespace, []byte(rec.ID)).String()),
			Class:      ClassName,
			Properties: props,
			Vector:     models.C11yVector(rec.Values),
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert: %w", err)
	}
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]provider.Match, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	fields := []graphql.Field{
		{Name: "vectorId"},
		{Name: "text"},
		{Name: "title"},
		{Name: "contentId"},
		{Name: "chunkIndex"},
		{Name: "contentKind"},
		{Name: "mediaUrl"},
		{Name: "ownerId"},
		{Name: "tags"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithNearVector(nearVector).
		WithLimit(topK).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("near vector query: %w", err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("near vector query: graphql error: %v", res.Errors[0].Message)
	}

	var matches []provider.Match
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return matches, nil
	}
	rows, ok := data[ClassName].([]interface{})
	if !ok {
		return matches, nil
	}

	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}

		match := provider.Match{Metadata: make(map[string]interface{}, len(props))}
		for k, v := range props {
			if k == "_additional" || k == "vectorId" {
				continue
			}
			match.Metadata[k] = v
		}
		if id, ok := props["vectorId"].(string); ok {
			match.ID = id
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			switch score := additional["certainty"].(type) {
			case float64:
				match.Score = cosineFromCertainty(float32(score))
			case string:
				if f, err := strconv.ParseFloat(score, 64); err == nil {
					match.Score = cosineFromCertainty(float32(f))
				}
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}

// cosineFromCertainty undoes Weaviate's certainty = (1 + cosine) / 2
// rescaling. Match scores and the retrieval thresholds are cosine-scale.
func cosineFromCertainty(certainty float32) float32 {
	return 2*certainty - 1
}

var _ provider.VectorStore = (*Store)(nil)
