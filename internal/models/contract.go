// Package models defines data structures for the contract intake pipeline.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Route values produced by the routing stage.
const (
	RouteAutoApprove = "auto_approve"
	RouteReviewQueue = "review_queue"
)

// Risk levels produced by the validation stage.
const (
	RiskLow  = "low"
	RiskHigh = "high"
)

// ReasonAutoApproval is the single canonical reason of an auto-approved route.
const ReasonAutoApproval = "meets_auto_approval_rules"

// DocumentMetadata describes where a document came from.
type DocumentMetadata struct {
	Sender       string    `json:"sender"`
	Subject      string    `json:"subject"`
	Filename     string    `json:"filename"`
	ReceivedAt   time.Time `json:"received_at"`
	SourceFile   string    `json:"source_file,omitempty"`
	ExtractionMS int64     `json:"extraction_ms,omitempty"`
}

// DocumentText is the normalized full text of a source document.
type DocumentText struct {
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// ContractExtraction holds the typed fields pulled from a contract.
type ContractExtraction struct {
	VendorName        string  `json:"vendor_name"`
	ContractStartDate string  `json:"contract_start_date"`
	ContractEndDate   string  `json:"contract_end_date"`
	TotalValue        float64 `json:"total_value"`
	ConfidenceScore   float64 `json:"confidence_score"`
}

// DeriveConfidence returns the share of essential fields that are present,
// rounded to two decimals. Vendor, start date, end date and a positive
// total value each count for one quarter.
func (c ContractExtraction) DeriveConfidence() float64 {
	present := 0
	for _, v := range []string{c.VendorName, c.ContractStartDate, c.ContractEndDate} {
		if strings.TrimSpace(v) != "" {
			present++
		}
	}
	if c.TotalValue > 0 {
		present++
	}
	return math.Round(float64(present)/4*100) / 100
}

// Validate checks the populated record against its value constraints.
func (c ContractExtraction) Validate() error {
	var errs []error
	if math.IsNaN(c.TotalValue) || math.IsInf(c.TotalValue, 0) {
		errs = append(errs, errors.New("total_value must be finite"))
	} else if c.TotalValue < 0 {
		errs = append(errs, fmt.Errorf("total_value must be non-negative, got %v", c.TotalValue))
	}
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 1 {
		errs = append(errs, fmt.Errorf("confidence_score must be within [0,1], got %v", c.ConfidenceScore))
	}
	return errors.Join(errs...)
}

// RetrievedPolicy is a policy passage returned by retrieval.
type RetrievedPolicy struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// ValidationResult is the outcome of policy validation.
type ValidationResult struct {
	PolicyViolations    []string `json:"policy_violations"`
	RiskLevel           string   `json:"risk_level"`
	RequiresHumanReview bool     `json:"requires_human_review"`
	Rationale           string   `json:"rationale"`
}

// RoutingDecision tells whether a contract is approved or queued.
type RoutingDecision struct {
	Route   string   `json:"route"`
	Reasons []string `json:"reasons"`
}

// AutoApproved reports whether the decision is the canonical auto-approval.
func (d RoutingDecision) AutoApproved() bool {
	return d.Route == RouteAutoApprove && len(d.Reasons) == 1 && d.Reasons[0] == ReasonAutoApproval
}
