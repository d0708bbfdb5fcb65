package db

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/contractflow/internal/models"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Row shapes as stored in SurrealDB. IDs are record IDs and are converted to
// plain strings at the package boundary.

type contractRecord struct {
	ID               surrealmodels.RecordID    `json:"id"`
	Sender           string                    `json:"sender"`
	Subject          string                    `json:"subject"`
	SourceFile       string                    `json:"source_file"`
	Status           string                    `json:"status"`
	Route            string                    `json:"route"`
	ExtractedData    models.ContractExtraction `json:"extracted_data"`
	ValidationResult models.ValidationResult   `json:"validation_result"`
	RoutingDecision  models.RoutingDecision    `json:"routing_decision"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

func (r contractRecord) toModel() (models.ProcessedContract, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.ProcessedContract{}, fmt.Errorf("contract id: %w", err)
	}
	if r.ValidationResult.PolicyViolations == nil {
		r.ValidationResult.PolicyViolations = []string{}
	}
	return models.ProcessedContract{
		ID:               id,
		Sender:           r.Sender,
		Subject:          r.Subject,
		SourceFile:       r.SourceFile,
		Status:           r.Status,
		Route:            r.Route,
		ExtractedData:    r.ExtractedData,
		ValidationResult: r.ValidationResult,
		RoutingDecision:  r.RoutingDecision,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

type reviewRecord struct {
	ID         surrealmodels.RecordID `json:"id"`
	ContractID string                 `json:"contract_id"`
	Reason     string                 `json:"reason"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
	Contract   *contractRecord        `json:"contract,omitempty"`
}

func (r reviewRecord) toModel() (models.ReviewItem, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.ReviewItem{}, fmt.Errorf("review id: %w", err)
	}
	item := models.ReviewItem{
		ID:         id,
		ContractID: r.ContractID,
		Reason:     r.Reason,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		ResolvedAt: r.ResolvedAt,
	}
	if r.Contract != nil {
		c, err := r.Contract.toModel()
		if err != nil {
			return models.ReviewItem{}, err
		}
		item.Contract = &c
	}
	return item, nil
}

type logRecord struct {
	ID         surrealmodels.RecordID `json:"id"`
	ContractID *string                `json:"contract_id,omitempty"`
	Stage      string                 `json:"stage"`
	Message    string                 `json:"message"`
	Payload    map[string]any         `json:"payload"`
	CreatedAt  time.Time              `json:"created_at"`
}

func (r logRecord) toModel() (models.ProcessingLog, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.ProcessingLog{}, fmt.Errorf("log id: %w", err)
	}
	return models.ProcessingLog{
		ID:         id,
		ContractID: r.ContractID,
		Stage:      r.Stage,
		Message:    r.Message,
		Payload:    r.Payload,
		CreatedAt:  r.CreatedAt,
	}, nil
}

// logVars flattens a log entry into query parameters.
func logVars(entry models.ProcessingLog) map[string]any {
	return map[string]any{
		"id":          entry.ID,
		"contract_id": entry.ContractID,
		"stage":       entry.Stage,
		"message":     entry.Message,
		"payload":     entry.Payload,
		"created_at":  entry.CreatedAt.Format(time.RFC3339Nano),
	}
}
