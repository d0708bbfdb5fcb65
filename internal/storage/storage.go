// Package storage defines persistence for processed contracts, the review
// queue, the processing log and the policy index.
package storage

import (
	"context"
	"errors"

	"github.com/raphaelgruber/contractflow/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrReviewNotPending is returned when resolving an already resolved review item.
	ErrReviewNotPending = errors.New("review item is not pending")
)

// ContractStore persists the outcome of pipeline runs.
type ContractStore interface {
	// PersistSuccess writes the contract record, its processing logs and,
	// when routed to review, a pending review item. All writes are atomic.
	// Returns the new contract ID.
	PersistSuccess(ctx context.Context, state *models.RunState) (string, error)

	// PersistFailure records a failed run with no contract attached.
	PersistFailure(ctx context.Context, sender, subject, filePath, errMsg string) error

	GetContract(ctx context.Context, id string) (*models.ProcessedContract, error)
	ListProcessingLogs(ctx context.Context, limit int) ([]models.ProcessingLog, error)
}

// ReviewStore serves the admin review surface.
type ReviewStore interface {
	// ListPendingReviews returns pending items, oldest first, with their contracts.
	ListPendingReviews(ctx context.Context) ([]models.ReviewItem, error)
	// ListApprovedContracts returns approved contracts, most recently updated first.
	ListApprovedContracts(ctx context.Context, limit, offset int) ([]models.ProcessedContract, error)
	// ResolveReview approves or rejects a pending item and updates its contract.
	ResolveReview(ctx context.Context, reviewID string, approve bool) (*models.ReviewItem, error)
}

// PolicyStore holds embedded policy chunks.
type PolicyStore interface {
	ResetPolicyChunks(ctx context.Context) error
	UpsertPolicyChunks(ctx context.Context, chunks []models.PolicyChunk) error
	SearchPolicies(ctx context.Context, embedding []float32, k int) ([]models.RetrievedPolicy, error)
}

// Store is the full persistence surface used by the application.
type Store interface {
	ContractStore
	ReviewStore
	PolicyStore
	Close(ctx context.Context) error
}
