package service

import (
	"time"

	"github.com/raphaelgruber/contractflow/internal/models"
)

// Webhook response statuses and decisions.
const (
	WebhookProcessed = "processed"
	WebhookAccepted  = "accepted"

	DecisionApproved = "approved"
	DecisionReview   = "review"
)

// WebhookResponse is the body returned to the email webhook caller.
type WebhookResponse struct {
	Status           string `json:"status"`
	Decision         string `json:"decision"`
	RiskLevel        string `json:"risk_level"`
	RequiresReview   bool   `json:"requires_review"`
	ContractID       string `json:"contract_id"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	RequestID        string `json:"request_id"`
}

// BuildWebhookResponse converts an executor outcome into a response.
// A deferred outcome is reported conservatively as a high-risk review with
// the request ID standing in for the contract ID.
func BuildWebhookResponse(outcome Outcome, elapsed time.Duration) WebhookResponse {
	if !outcome.Completed || outcome.Result == nil {
		return WebhookResponse{
			Status:           WebhookAccepted,
			Decision:         DecisionReview,
			RiskLevel:        models.RiskHigh,
			RequiresReview:   true,
			ContractID:       outcome.RequestID,
			ProcessingTimeMS: elapsed.Milliseconds(),
			RequestID:        outcome.RequestID,
		}
	}

	result := outcome.Result
	decision := DecisionReview
	if result.Routing.Route == models.RouteAutoApprove {
		decision = DecisionApproved
	}
	risk := result.Validation.RiskLevel
	if risk != models.RiskLow && risk != models.RiskHigh {
		risk = models.RiskHigh
	}
	return WebhookResponse{
		Status:           WebhookProcessed,
		Decision:         decision,
		RiskLevel:        risk,
		RequiresReview:   decision == DecisionReview,
		ContractID:       result.ContractID,
		ProcessingTimeMS: elapsed.Milliseconds(),
		RequestID:        outcome.RequestID,
	}
}
