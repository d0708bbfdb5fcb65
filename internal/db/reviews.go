package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/storage"
	"github.com/surrealdb/surrealdb.go"
)

// ListPendingReviews returns pending review items, oldest first, each with
// its contract attached.
func (c *Client) ListPendingReviews(ctx context.Context) ([]models.ReviewItem, error) {
	results, err := surrealdb.Query[[]reviewRecord](ctx, c.db, `
		SELECT *,
			(SELECT * FROM ONLY type::record("processed_contract", $parent.contract_id)) AS contract
		FROM review_item
		WHERE status = $status
		ORDER BY created_at ASC
	`, map[string]any{"status": models.ReviewPending})
	if err != nil {
		return nil, fmt.Errorf("list pending reviews: %w", wrapQueryError(err))
	}

	items := []models.ReviewItem{}
	if results == nil || len(*results) == 0 {
		return items, nil
	}
	for _, r := range (*results)[0].Result {
		item, err := r.toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ListApprovedContracts returns approved contracts, most recently updated first.
func (c *Client) ListApprovedContracts(ctx context.Context, limit, offset int) ([]models.ProcessedContract, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	results, err := surrealdb.Query[[]contractRecord](ctx, c.db, `
		SELECT * FROM processed_contract
		WHERE status = $status
		ORDER BY updated_at DESC
		LIMIT $limit START $offset
	`, map[string]any{"status": models.StatusApproved, "limit": limit, "offset": offset})
	if err != nil {
		return nil, fmt.Errorf("list approved contracts: %w", wrapQueryError(err))
	}

	contracts := []models.ProcessedContract{}
	if results == nil || len(*results) == 0 {
		return contracts, nil
	}
	for _, r := range (*results)[0].Result {
		contract, err := r.toModel()
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

// ResolveReview approves or rejects a pending review item and updates the
// contract status in the same transaction. The pending check runs inside the
// transaction.
func (c *Client) ResolveReview(ctx context.Context, reviewID string, approve bool) (*models.ReviewItem, error) {
	reviewStatus, contractStatus := models.ReviewDecision(approve)

	sql := fmt.Sprintf(`
		BEGIN TRANSACTION;
		LET $item = (SELECT * FROM ONLY type::record("review_item", $id));
		IF $item = NONE { THROW "%s"; };
		IF $item.status != $pending { THROW "%s"; };
		UPDATE type::record("review_item", $id) SET
			status = $review_status,
			resolved_at = type::datetime($now);
		UPDATE type::record("processed_contract", $item.contract_id) SET
			status = $contract_status,
			updated_at = type::datetime($now);
		COMMIT TRANSACTION;
	`, throwNotFound, throwNotPending)

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":              reviewID,
		"pending":         models.ReviewPending,
		"review_status":   reviewStatus,
		"contract_status": contractStatus,
		"now":             time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve review: %w", wrapQueryError(err))
	}

	return c.getReview(ctx, reviewID)
}

func (c *Client) getReview(ctx context.Context, id string) (*models.ReviewItem, error) {
	results, err := surrealdb.Query[[]reviewRecord](ctx, c.db, `
		SELECT *,
			(SELECT * FROM ONLY type::record("processed_contract", $parent.contract_id)) AS contract
		FROM type::record("review_item", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get review: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, storage.ErrNotFound
	}
	item, err := (*results)[0].Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &item, nil
}
