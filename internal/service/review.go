package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/storage"
)

// ReviewService exposes the review queue to admins.
type ReviewService struct {
	store   storage.ReviewStore
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewReviewService creates a review service.
func NewReviewService(store storage.ReviewStore, collector *metrics.Collector, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{store: store, metrics: collector, logger: logger}
}

// Pending lists review items awaiting a decision, oldest first.
func (s *ReviewService) Pending(ctx context.Context) ([]models.ReviewItem, error) {
	start := time.Now()
	defer func() { s.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start)) }()
	return s.store.ListPendingReviews(ctx)
}

// Approved lists approved contracts, most recently updated first.
func (s *ReviewService) Approved(ctx context.Context, limit, offset int) ([]models.ProcessedContract, error) {
	start := time.Now()
	defer func() { s.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start)) }()
	return s.store.ListApprovedContracts(ctx, limit, offset)
}

// Approve marks a pending review item and its contract approved.
func (s *ReviewService) Approve(ctx context.Context, reviewID string) (*models.ReviewItem, error) {
	return s.resolve(ctx, reviewID, true)
}

// Reject marks a pending review item and its contract rejected.
func (s *ReviewService) Reject(ctx context.Context, reviewID string) (*models.ReviewItem, error) {
	return s.resolve(ctx, reviewID, false)
}

func (s *ReviewService) resolve(ctx context.Context, reviewID string, approve bool) (*models.ReviewItem, error) {
	start := time.Now()
	item, err := s.store.ResolveReview(ctx, reviewID, approve)
	s.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.logger.Info("review resolved",
		"event", "review_resolved",
		"review_id", reviewID,
		"contract_id", item.ContractID,
		"status", item.Status,
	)
	return item, nil
}
