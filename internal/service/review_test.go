package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/contractflow/internal/metrics"
	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/storage"
	"github.com/raphaelgruber/contractflow/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store
}

func queueContract(t *testing.T, store *sqlite.Store) {
	t.Helper()
	contract := models.ContractExtraction{VendorName: "Acme", TotalValue: 900000, ContractStartDate: "2024-01-01", ContractEndDate: "2024-12-31", ConfidenceScore: 1}
	state := models.NewRunState("req-1", "s", "subj", "/tmp/a.pdf")
	state.Document = &models.DocumentText{Text: "text"}
	state.Contract = &contract
	state.Validation = &models.ValidationResult{RiskLevel: models.RiskHigh, RequiresHumanReview: true, PolicyViolations: []string{"total_value_exceeds_policy_threshold:900000.0>500000.0"}}
	state.Routing = &models.RoutingDecision{Route: models.RouteReviewQueue, Reasons: []string{"validation_requires_human_review"}}

	_, err := store.PersistSuccess(context.Background(), state)
	require.NoError(t, err)
}

func TestReviewService_ApproveFlow(t *testing.T) {
	store := newSQLiteStore(t)
	queueContract(t, store)
	collector := metrics.NewCollector()
	svc := NewReviewService(store, collector, nil)
	ctx := context.Background()

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Contract)
	assert.Equal(t, "Acme", pending[0].Contract.ExtractedData.VendorName)

	item, err := svc.Approve(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, item.Status)

	pending, err = svc.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	approved, err := svc.Approved(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, models.StatusApproved, approved[0].Status)

	assert.Equal(t, int64(4), collector.Snapshot().Operations[metrics.OpDBQuery].Count)
}

func TestReviewService_RejectAndErrors(t *testing.T) {
	store := newSQLiteStore(t)
	queueContract(t, store)
	svc := NewReviewService(store, nil, nil)
	ctx := context.Background()

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	item, err := svc.Reject(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewRejected, item.Status)

	_, err = svc.Approve(ctx, pending[0].ID)
	assert.ErrorIs(t, err, storage.ErrReviewNotPending)

	_, err = svc.Reject(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	approved, err := svc.Approved(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, approved)
}
