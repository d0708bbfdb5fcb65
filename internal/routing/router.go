// Package routing decides whether a validated contract is approved or queued.
package routing

import (
	"fmt"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/validation"
)

// MinConfidence is the extraction confidence required for auto-approval.
const MinConfidence = 0.80

// Reason codes.
const (
	ReasonLowConfidence     = "extraction_confidence_below_threshold"
	ReasonHumanReview       = "validation_requires_human_review"
	ReasonPolicyPrefix      = "policy_violation:"
	ReasonOverrideThreshold = "total_value_exceeds_routing_threshold"
)

// Route combines extraction confidence and the validation outcome.
// A non-nil override adds a review reason when total value exceeds it.
func Route(contract models.ContractExtraction, result models.ValidationResult, override *float64) models.RoutingDecision {
	var reasons []string

	if contract.ConfidenceScore < MinConfidence {
		reasons = append(reasons, ReasonLowConfidence)
	}
	if result.RequiresHumanReview {
		reasons = append(reasons, ReasonHumanReview)
		for _, v := range result.PolicyViolations {
			reasons = append(reasons, ReasonPolicyPrefix+v)
		}
	}
	if override != nil && contract.TotalValue > *override {
		reasons = append(reasons, fmt.Sprintf("%s:%s>%s", ReasonOverrideThreshold,
			validation.FormatAmount(contract.TotalValue), validation.FormatAmount(*override)))
	}

	if len(reasons) == 0 {
		return models.RoutingDecision{
			Route:   models.RouteAutoApprove,
			Reasons: []string{models.ReasonAutoApproval},
		}
	}
	return models.RoutingDecision{Route: models.RouteReviewQueue, Reasons: reasons}
}
