package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// ResetPolicyChunks deletes the whole policy index.
func (c *Client) ResetPolicyChunks(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, `DELETE policy_chunk`, nil); err != nil {
		return fmt.Errorf("reset policy chunks: %w", wrapQueryError(err))
	}
	return nil
}

// UpsertPolicyChunks stores chunks keyed by their ID.
func (c *Client) UpsertPolicyChunks(ctx context.Context, chunks []models.PolicyChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(chunks))
	for _, ch := range chunks {
		rows = append(rows, map[string]any{
			"id":        ch.ID,
			"source":    ch.Source,
			"title":     ch.Title,
			"position":  ch.Position,
			"content":   ch.Content,
			"embedding": ch.Embedding,
		})
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		FOR $chunk IN $chunks {
			UPSERT type::record("policy_chunk", $chunk.id) SET
				source = $chunk.source,
				title = $chunk.title,
				position = $chunk.position,
				content = $chunk.content,
				embedding = $chunk.embedding;
		};
		COMMIT TRANSACTION;
	`, map[string]any{"chunks": rows})
	if err != nil {
		return fmt.Errorf("upsert policy chunks: %w", wrapQueryError(err))
	}
	return nil
}

type policyHit struct {
	Source   string  `json:"source"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

// SearchPolicies runs a k-nearest-neighbour search over the HNSW index.
func (c *Client) SearchPolicies(ctx context.Context, embedding []float32, k int) ([]models.RetrievedPolicy, error) {
	if k <= 0 {
		return []models.RetrievedPolicy{}, nil
	}

	// HNSW search with ef=40.
	sql := fmt.Sprintf(`
		SELECT source, content, vector::distance::knn() AS distance
		FROM policy_chunk
		WHERE embedding <|%d,40|> $emb
		ORDER BY distance ASC
	`, k)

	results, err := surrealdb.Query[[]policyHit](ctx, c.db, sql, map[string]any{"emb": embedding})
	if err != nil {
		return nil, fmt.Errorf("search policies: %w", wrapQueryError(err))
	}

	policies := []models.RetrievedPolicy{}
	if results == nil || len(*results) == 0 {
		return policies, nil
	}
	for _, hit := range (*results)[0].Result {
		policies = append(policies, models.RetrievedPolicy{Source: hit.Source, Content: hit.Content})
	}
	return policies, nil
}
