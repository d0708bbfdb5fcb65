package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/storage"
	"github.com/surrealdb/surrealdb.go"
)

var _ storage.Store = (*Client)(nil)

const createContractSQL = `
	CREATE type::record("processed_contract", $contract_id) SET
		sender = $sender,
		subject = $subject,
		source_file = $source_file,
		status = $status,
		route = $route,
		extracted_data = $extracted_data,
		validation_result = $validation_result,
		routing_decision = $routing_decision,
		created_at = type::datetime($now),
		updated_at = type::datetime($now);
`

const createReviewSQL = `
	CREATE type::record("review_item", $review_id) SET
		contract_id = $contract_id,
		reason = $reason,
		status = $review_status,
		created_at = type::datetime($now);
`

const createLogsSQL = `
	FOR $log IN $logs {
		CREATE type::record("processing_log", $log.id) SET
			contract_id = $log.contract_id,
			stage = $log.stage,
			message = $log.message,
			payload = $log.payload,
			created_at = type::datetime($log.created_at);
	};
`

// PersistSuccess writes the contract, its logs and an optional review item
// in one transaction.
func (c *Client) PersistSuccess(ctx context.Context, state *models.RunState) (string, error) {
	records, err := storage.BuildSuccessRecords(state, time.Now().UTC())
	if err != nil {
		return "", err
	}
	contract := records.Contract

	logs := make([]map[string]any, 0, len(records.Logs))
	for _, entry := range records.Logs {
		logs = append(logs, logVars(entry))
	}
	vars := map[string]any{
		"contract_id":       contract.ID,
		"sender":            contract.Sender,
		"subject":           contract.Subject,
		"source_file":       contract.SourceFile,
		"status":            contract.Status,
		"route":             contract.Route,
		"extracted_data":    contract.ExtractedData,
		"validation_result": contract.ValidationResult,
		"routing_decision":  contract.RoutingDecision,
		"now":               contract.CreatedAt.Format(time.RFC3339Nano),
		"logs":              logs,
	}

	var sql strings.Builder
	sql.WriteString("BEGIN TRANSACTION;")
	sql.WriteString(createContractSQL)
	if records.Review != nil {
		sql.WriteString(createReviewSQL)
		vars["review_id"] = records.Review.ID
		vars["reason"] = records.Review.Reason
		vars["review_status"] = records.Review.Status
	}
	sql.WriteString(createLogsSQL)
	sql.WriteString("COMMIT TRANSACTION;")

	if _, err := surrealdb.Query[any](ctx, c.db, sql.String(), vars); err != nil {
		return "", fmt.Errorf("persist contract: %w", wrapQueryError(err))
	}
	return contract.ID, nil
}

// PersistFailure records a pipeline_error log entry without a contract.
func (c *Client) PersistFailure(ctx context.Context, sender, subject, filePath, errMsg string) error {
	entry := storage.BuildFailureLog(sender, subject, filePath, errMsg, time.Now().UTC())
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("processing_log", $id) SET
			stage = $stage,
			message = $message,
			payload = $payload,
			created_at = type::datetime($created_at)
	`, logVars(entry))
	if err != nil {
		return fmt.Errorf("persist failure log: %w", wrapQueryError(err))
	}
	return nil
}

// GetContract retrieves a processed contract by ID.
func (c *Client) GetContract(ctx context.Context, id string) (*models.ProcessedContract, error) {
	results, err := surrealdb.Query[[]contractRecord](ctx, c.db, `
		SELECT * FROM type::record("processed_contract", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, storage.ErrNotFound
	}
	contract, err := (*results)[0].Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// ListProcessingLogs returns the newest log entries first.
func (c *Client) ListProcessingLogs(ctx context.Context, limit int) ([]models.ProcessingLog, error) {
	if limit <= 0 {
		limit = 100
	}
	results, err := surrealdb.Query[[]logRecord](ctx, c.db, `
		SELECT * FROM processing_log ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list processing logs: %w", wrapQueryError(err))
	}

	logs := []models.ProcessingLog{}
	if results == nil || len(*results) == 0 {
		return logs, nil
	}
	for _, r := range (*results)[0].Result {
		entry, err := r.toModel()
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
