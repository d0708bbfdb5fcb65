package service

import (
	"testing"
	"time"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildWebhookResponse(t *testing.T) {
	approved := &models.PipelineResult{
		ContractID: "c-1",
		Routing:    models.RoutingDecision{Route: models.RouteAutoApprove, Reasons: []string{models.ReasonAutoApproval}},
		Validation: models.ValidationResult{RiskLevel: models.RiskLow},
	}
	review := &models.PipelineResult{
		ContractID: "c-2",
		Routing:    models.RoutingDecision{Route: models.RouteReviewQueue, Reasons: []string{"validation_requires_human_review"}},
		Validation: models.ValidationResult{RiskLevel: models.RiskHigh, RequiresHumanReview: true},
	}
	oddRisk := &models.PipelineResult{
		ContractID: "c-3",
		Routing:    models.RoutingDecision{Route: models.RouteReviewQueue},
		Validation: models.ValidationResult{RiskLevel: "medium"},
	}

	tests := []struct {
		name    string
		outcome Outcome
		want    WebhookResponse
	}{
		{
			name:    "approved",
			outcome: Outcome{Completed: true, RequestID: "r-1", Result: approved},
			want:    WebhookResponse{Status: WebhookProcessed, Decision: DecisionApproved, RiskLevel: models.RiskLow, ContractID: "c-1", ProcessingTimeMS: 1500, RequestID: "r-1"},
		},
		{
			name:    "review",
			outcome: Outcome{Completed: true, RequestID: "r-2", Result: review},
			want:    WebhookResponse{Status: WebhookProcessed, Decision: DecisionReview, RiskLevel: models.RiskHigh, RequiresReview: true, ContractID: "c-2", ProcessingTimeMS: 1500, RequestID: "r-2"},
		},
		{
			name:    "unknown risk reported high",
			outcome: Outcome{Completed: true, RequestID: "r-3", Result: oddRisk},
			want:    WebhookResponse{Status: WebhookProcessed, Decision: DecisionReview, RiskLevel: models.RiskHigh, RequiresReview: true, ContractID: "c-3", ProcessingTimeMS: 1500, RequestID: "r-3"},
		},
		{
			name:    "deferred",
			outcome: Outcome{RequestID: "r-4"},
			want:    WebhookResponse{Status: WebhookAccepted, Decision: DecisionReview, RiskLevel: models.RiskHigh, RequiresReview: true, ContractID: "r-4", ProcessingTimeMS: 1500, RequestID: "r-4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildWebhookResponse(tt.outcome, 1500*time.Millisecond))
		})
	}
}
