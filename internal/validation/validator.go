// Package validation checks an extracted contract against policy rules.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/contractflow/internal/models"
)

// UsageMode marks validation usage as not model-driven.
const UsageMode = "deterministic"

const (
	rationaleReview = "Contract requires review due to threshold exceedance or missing required fields."
	rationalePassed = "Contract passed threshold and required field checks."
)

var currencyAmountRe = regexp.MustCompile(`(?i)(?:usd|\$|€|£)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

// Validator applies the approval threshold and required-field rules.
type Validator struct {
	defaultThreshold float64
	logger           *slog.Logger
}

// NewValidator creates a validator falling back to defaultThreshold when
// no retrieved policy states an amount.
func NewValidator(defaultThreshold float64, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{defaultThreshold: defaultThreshold, logger: logger}
}

// Validate evaluates contract against the retrieved policies.
// It never calls a model; the returned usage only carries the mode.
func (v *Validator) Validate(_ context.Context, contract models.ContractExtraction, policies []models.RetrievedPolicy) (models.ValidationResult, models.Usage, time.Duration) {
	start := time.Now()

	threshold, found := DiscoverThreshold(policies)
	if !found {
		threshold = v.defaultThreshold
	}
	missing := MissingRequiredFields(contract)
	exceeds := contract.TotalValue > threshold

	violations := []string{}
	if exceeds {
		violations = append(violations, fmt.Sprintf("total_value_exceeds_policy_threshold:%s>%s",
			FormatAmount(contract.TotalValue), FormatAmount(threshold)))
	}
	if len(missing) > 0 {
		violations = append(violations, "missing_required_fields:"+strings.Join(missing, ","))
	}

	result := models.ValidationResult{
		PolicyViolations:    violations,
		RiskLevel:           models.RiskLow,
		RequiresHumanReview: exceeds || len(missing) > 0,
		Rationale:           rationalePassed,
	}
	if result.RequiresHumanReview {
		result.RiskLevel = models.RiskHigh
		result.Rationale = rationaleReview
	}

	v.logger.Debug("validation evaluated",
		"threshold", threshold,
		"threshold_from_policy", found,
		"policies", len(policies),
		"violations", len(violations),
	)
	return result, models.Usage{Mode: UsageMode}, time.Since(start)
}

// DiscoverThreshold returns the smallest positive currency amount mentioned
// across all policies. The second result is false when none is mentioned.
func DiscoverThreshold(policies []models.RetrievedPolicy) (float64, bool) {
	var lowest float64
	found := false
	for _, p := range policies {
		for _, m := range currencyAmountRe.FindAllStringSubmatch(p.Content, -1) {
			n, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil || n <= 0 {
				continue
			}
			if !found || n < lowest {
				lowest = n
				found = true
			}
		}
	}
	return lowest, found
}

// MissingRequiredFields lists the blank required text fields in order.
func MissingRequiredFields(c models.ContractExtraction) []string {
	var missing []string
	if strings.TrimSpace(c.VendorName) == "" {
		missing = append(missing, "vendor_name")
	}
	if strings.TrimSpace(c.ContractStartDate) == "" {
		missing = append(missing, "contract_start_date")
	}
	if strings.TrimSpace(c.ContractEndDate) == "" {
		missing = append(missing, "contract_end_date")
	}
	return missing
}

// FormatAmount renders a float with at least one decimal, e.g. 500000.0.
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
