package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestRecordIDString(t *testing.T) {
	id, err := RecordIDString(surrealmodels.RecordID{Table: "processed_contract", ID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = RecordIDString(surrealmodels.RecordID{Table: "processed_contract", ID: 42})
	assert.Error(t, err)
}

func TestDeriveConfidence(t *testing.T) {
	tests := []struct {
		name     string
		contract ContractExtraction
		want     float64
	}{
		{"all present", ContractExtraction{VendorName: "Acme", ContractStartDate: "2026-01-01", ContractEndDate: "2027-01-01", TotalValue: 10}, 1},
		{"zero value", ContractExtraction{VendorName: "Acme", ContractStartDate: "2026-01-01", ContractEndDate: "2027-01-01"}, 0.75},
		{"blank vendor", ContractExtraction{VendorName: "  ", TotalValue: 5}, 0.25},
		{"empty", ContractExtraction{}, 0},
		{"negative value", ContractExtraction{VendorName: "Acme", TotalValue: -3}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.contract.DeriveConfidence())
		})
	}
}

func TestContractExtractionValidate(t *testing.T) {
	assert.NoError(t, ContractExtraction{TotalValue: 1, ConfidenceScore: 0.5}.Validate())
	assert.Error(t, ContractExtraction{TotalValue: -1}.Validate())
	assert.Error(t, ContractExtraction{ConfidenceScore: 1.5}.Validate())
}

func TestRoutingDecisionAutoApproved(t *testing.T) {
	assert.True(t, RoutingDecision{Route: RouteAutoApprove, Reasons: []string{ReasonAutoApproval}}.AutoApproved())
	assert.False(t, RoutingDecision{Route: RouteAutoApprove, Reasons: []string{ReasonAutoApproval, "x"}}.AutoApproved())
	assert.False(t, RoutingDecision{Route: RouteReviewQueue, Reasons: []string{"x"}}.AutoApproved())
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}.Add(Usage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3})
	assert.Equal(t, Usage{InputTokens: 11, OutputTokens: 7, TotalTokens: 18}, u)
	assert.True(t, Usage{}.IsZero())
}

func TestReviewReason(t *testing.T) {
	assert.Equal(t, "a; b", ReviewReason([]string{"a", "b"}))
	assert.Equal(t, StatusPendingReview, ContractStatusFor(RouteReviewQueue))
	assert.Equal(t, StatusApproved, ContractStatusFor(RouteAutoApprove))
}
