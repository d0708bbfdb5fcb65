// Package retrieval finds the policy passages relevant to a contract and
// builds the policy index they are retrieved from.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/storage"
	"github.com/raphaelgruber/contractflow/internal/validation"
)

// DefaultK is the number of passages retrieved when none is configured.
const DefaultK = 4

// QueryEmbedder turns a single text into a vector.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever runs similarity search over the policy index.
type Retriever struct {
	embedder QueryEmbedder
	store    storage.PolicyStore
	k        int
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// NewRetriever creates a retriever returning the top k passages.
func NewRetriever(embedder QueryEmbedder, store storage.PolicyStore, k int, collector *metrics.Collector, logger *slog.Logger) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, k: k, metrics: collector, logger: logger}
}

// RetrieveRelevantPolicies returns the passages most similar to a query
// describing the contract.
func (r *Retriever) RetrieveRelevantPolicies(ctx context.Context, contract models.ContractExtraction) ([]models.RetrievedPolicy, error) {
	query := BuildQuery(contract)

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed policy query: %w", err)
	}

	start := time.Now()
	policies, err := r.store.SearchPolicies(ctx, embedding, r.k)
	r.metrics.RecordTiming(metrics.OpDBSearch, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("search policies: %w", err)
	}

	r.logger.Debug("policies retrieved", "count", len(policies), "k", r.k)
	return policies, nil
}

// BuildQuery renders the retrieval query for a contract.
func BuildQuery(c models.ContractExtraction) string {
	return fmt.Sprintf(
		"Vendor: %s; Contract start date: %s; Contract end date: %s; Total value: %s; "+
			"Retrieve policies relevant to total value approval thresholds and required contract fields.",
		c.VendorName, c.ContractStartDate, c.ContractEndDate, validation.FormatAmount(c.TotalValue),
	)
}
