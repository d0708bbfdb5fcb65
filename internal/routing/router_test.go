package routing

import (
	"testing"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

var passed = models.ValidationResult{PolicyViolations: []string{}, RiskLevel: models.RiskLow}

func TestRoute(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		value      float64
		validation models.ValidationResult
		override   *float64
		wantRoute  string
		wantReason []string
	}{
		{
			name:       "low confidence with any threshold",
			confidence: 0.7,
			value:      10,
			validation: passed,
			override:   ptr(1_000_000),
			wantRoute:  models.RouteReviewQueue,
			wantReason: []string{ReasonLowConfidence},
		},
		{
			name:       "value above override",
			confidence: 0.9,
			value:      600000,
			validation: passed,
			override:   ptr(500000),
			wantRoute:  models.RouteReviewQueue,
			wantReason: []string{"total_value_exceeds_routing_threshold:600000.0>500000.0"},
		},
		{
			name:       "clean contract",
			confidence: 0.9,
			value:      400000,
			validation: passed,
			override:   ptr(500000),
			wantRoute:  models.RouteAutoApprove,
			wantReason: []string{models.ReasonAutoApproval},
		},
		{
			name:       "no override",
			confidence: 1,
			value:      9e9,
			validation: passed,
			wantRoute:  models.RouteAutoApprove,
			wantReason: []string{models.ReasonAutoApproval},
		},
		{
			name:       "confidence exactly at threshold",
			confidence: 0.8,
			validation: passed,
			wantRoute:  models.RouteAutoApprove,
			wantReason: []string{models.ReasonAutoApproval},
		},
		{
			name:       "validation requires review",
			confidence: 1,
			value:      700000,
			validation: models.ValidationResult{
				PolicyViolations:    []string{"total_value_exceeds_policy_threshold:700000.0>500000.0"},
				RiskLevel:           models.RiskHigh,
				RequiresHumanReview: true,
			},
			wantRoute: models.RouteReviewQueue,
			wantReason: []string{
				ReasonHumanReview,
				"policy_violation:total_value_exceeds_policy_threshold:700000.0>500000.0",
			},
		},
		{
			name:       "all reasons in order",
			confidence: 0.5,
			value:      700000,
			validation: models.ValidationResult{
				PolicyViolations:    []string{"a", "b"},
				RiskLevel:           models.RiskHigh,
				RequiresHumanReview: true,
			},
			override:  ptr(100),
			wantRoute: models.RouteReviewQueue,
			wantReason: []string{
				ReasonLowConfidence,
				ReasonHumanReview,
				"policy_violation:a",
				"policy_violation:b",
				"total_value_exceeds_routing_threshold:700000.0>100.0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := models.ContractExtraction{ConfidenceScore: tt.confidence, TotalValue: tt.value}

			got := Route(contract, tt.validation, tt.override)

			assert.Equal(t, tt.wantRoute, got.Route)
			assert.Equal(t, tt.wantReason, got.Reasons)
			assert.Equal(t, got.Route == models.RouteAutoApprove, got.AutoApproved())
		})
	}
}
