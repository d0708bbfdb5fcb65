package models

import "time"

// Contract statuses.
const (
	StatusApproved      = "approved"
	StatusPendingReview = "pending_review"
	StatusRejected      = "rejected"
)

// Review item statuses.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// LogStagePipelineError marks a failed run in the processing log.
const LogStagePipelineError = "pipeline_error"

// ProcessedContract is the persisted form of a pipeline run.
type ProcessedContract struct {
	ID               string             `json:"id"`
	Sender           string             `json:"sender"`
	Subject          string             `json:"subject"`
	SourceFile       string             `json:"source_file"`
	Status           string             `json:"status"`
	Route            string             `json:"route"`
	ExtractedData    ContractExtraction `json:"extracted_data"`
	ValidationResult ValidationResult   `json:"validation_result"`
	RoutingDecision  RoutingDecision    `json:"routing_decision"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ReviewItem is a queued request for human review.
type ReviewItem struct {
	ID         string             `json:"id"`
	ContractID string             `json:"contract_id"`
	Reason     string             `json:"reason"`
	Status     string             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
	Contract   *ProcessedContract `json:"contract,omitempty"`
}

// ProcessingLog is an audit entry for one stage of one run.
type ProcessingLog struct {
	ID         string         `json:"id"`
	ContractID *string        `json:"contract_id,omitempty"`
	Stage      string         `json:"stage"`
	Message    string         `json:"message"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PolicyChunk is an embedded slice of a policy document.
type PolicyChunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title,omitempty"`
	Position  int       `json:"position"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// ReviewDecision maps an admin action to the review status it sets.
func ReviewDecision(approve bool) (reviewStatus, contractStatus string) {
	if approve {
		return ReviewApproved, StatusApproved
	}
	return ReviewRejected, StatusRejected
}

// ContractStatusFor maps a route to the stored contract status.
func ContractStatusFor(route string) string {
	if route == RouteReviewQueue {
		return StatusPendingReview
	}
	return StatusApproved
}
