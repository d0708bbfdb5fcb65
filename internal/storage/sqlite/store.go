// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/raphaelgruber/contractflow/internal/models"
	"github.com/raphaelgruber/contractflow/internal/storage"
)

// Store is a SQLite implementation of storage.Store.
// Policy search is a brute-force cosine scan over stored embeddings.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; nothing below holds rows open across queries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS processed_contracts (
			id TEXT PRIMARY KEY,
			sender TEXT NOT NULL,
			subject TEXT NOT NULL,
			source_file TEXT NOT NULL,
			status TEXT NOT NULL,
			route TEXT NOT NULL,
			extracted_data TEXT NOT NULL,
			validation_result TEXT NOT NULL,
			routing_decision TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS review_items (
			id TEXT PRIMARY KEY,
			contract_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP,
			FOREIGN KEY (contract_id) REFERENCES processed_contracts(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS processing_logs (
			id TEXT PRIMARY KEY,
			contract_id TEXT,
			stage TEXT NOT NULL,
			message TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS policy_chunks (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_status ON processed_contracts(status, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_review_items_status ON review_items(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_review_items_contract ON review_items(contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_logs_contract ON processing_logs(contract_id)`,
		`CREATE INDEX IF NOT EXISTS idx_policy_chunks_source ON policy_chunks(source)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Close closes the database.
func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

// WipeData deletes all rows while preserving the schema. Use for testing only.
func (s *Store) WipeData(ctx context.Context) error {
	for _, table := range []string{"review_items", "processing_logs", "processed_contracts", "policy_chunks"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	return nil
}

// PersistSuccess implements storage.ContractStore.
func (s *Store) PersistSuccess(ctx context.Context, state *models.RunState) (string, error) {
	records, err := storage.BuildSuccessRecords(state, s.now())
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := insertContract(ctx, tx, &records.Contract); err != nil {
		return "", err
	}
	if records.Review != nil {
		r := records.Review
		_, err := tx.ExecContext(ctx,
			`INSERT INTO review_items (id, contract_id, reason, status, created_at) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.ContractID, r.Reason, r.Status, r.CreatedAt)
		if err != nil {
			return "", fmt.Errorf("failed to insert review item: %w", err)
		}
	}
	for i := range records.Logs {
		if err := insertLog(ctx, tx, &records.Logs[i]); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return records.Contract.ID, nil
}

// PersistFailure implements storage.ContractStore.
func (s *Store) PersistFailure(ctx context.Context, sender, subject, filePath, errMsg string) error {
	entry := storage.BuildFailureLog(sender, subject, filePath, errMsg, s.now())
	return insertLog(ctx, s.db, &entry)
}

// GetContract implements storage.ContractStore.
func (s *Store) GetContract(ctx context.Context, id string) (*models.ProcessedContract, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contractColumns+` FROM processed_contracts WHERE id = ?`, id)
	c, err := scanContract(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListProcessingLogs returns the newest log entries first.
func (s *Store) ListProcessingLogs(ctx context.Context, limit int) ([]models.ProcessingLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contract_id, stage, message, payload, created_at
		FROM processing_logs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query processing logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ProcessingLog
	for rows.Next() {
		var (
			entry      models.ProcessingLog
			contractID sql.NullString
			payload    string
		)
		if err := rows.Scan(&entry.ID, &contractID, &entry.Stage, &entry.Message, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processing log: %w", err)
		}
		if contractID.Valid {
			id := contractID.String
			entry.ContractID = &id
		}
		if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log payload: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// ListPendingReviews implements storage.ReviewStore.
func (s *Store) ListPendingReviews(ctx context.Context) ([]models.ReviewItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.contract_id, r.reason, r.status, r.created_at, r.resolved_at, `+prefixed("c")+`
		FROM review_items r JOIN processed_contracts c ON c.id = r.contract_id
		WHERE r.status = ? ORDER BY r.created_at ASC, r.rowid ASC`, models.ReviewPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query review items: %w", err)
	}
	defer rows.Close()

	items := []models.ReviewItem{}
	for rows.Next() {
		var (
			item     models.ReviewItem
			resolved sql.NullTime
			c        contractRow
		)
		dest := append([]any{&item.ID, &item.ContractID, &item.Reason, &item.Status, &item.CreatedAt, &resolved}, c.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan review item: %w", err)
		}
		if resolved.Valid {
			t := resolved.Time
			item.ResolvedAt = &t
		}
		contract, err := c.decode()
		if err != nil {
			return nil, err
		}
		item.Contract = contract
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListApprovedContracts implements storage.ReviewStore.
func (s *Store) ListApprovedContracts(ctx context.Context, limit, offset int) ([]models.ProcessedContract, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM processed_contracts
		WHERE status = ? ORDER BY updated_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		models.StatusApproved, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	contracts := []models.ProcessedContract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

// ResolveReview implements storage.ReviewStore.
func (s *Store) ResolveReview(ctx context.Context, reviewID string, approve bool) (*models.ReviewItem, error) {
	reviewStatus, contractStatus := models.ReviewDecision(approve)
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var item models.ReviewItem
	err = tx.QueryRowContext(ctx,
		`SELECT id, contract_id, reason, status, created_at FROM review_items WHERE id = ?`, reviewID).
		Scan(&item.ID, &item.ContractID, &item.Reason, &item.Status, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review item: %w", err)
	}
	if item.Status != models.ReviewPending {
		return nil, storage.ErrReviewNotPending
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE review_items SET status = ?, resolved_at = ? WHERE id = ?`,
		reviewStatus, now, reviewID); err != nil {
		return nil, fmt.Errorf("failed to update review item: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE processed_contracts SET status = ?, updated_at = ? WHERE id = ?`,
		contractStatus, now, item.ContractID); err != nil {
		return nil, fmt.Errorf("failed to update contract status: %w", err)
	}

	contract, err := scanContract(tx.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM processed_contracts WHERE id = ?`, item.ContractID))
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	item.Status = reviewStatus
	item.ResolvedAt = &now
	item.Contract = contract
	return &item, nil
}

// ResetPolicyChunks implements storage.PolicyStore.
func (s *Store) ResetPolicyChunks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM policy_chunks`); err != nil {
		return fmt.Errorf("failed to clear policy chunks: %w", err)
	}
	return nil
}

// UpsertPolicyChunks implements storage.PolicyStore.
func (s *Store) UpsertPolicyChunks(ctx context.Context, chunks []models.PolicyChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, c := range chunks {
		embedding, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO policy_chunks (id, source, title, position, content, embedding)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET source = excluded.source, title = excluded.title,
				position = excluded.position, content = excluded.content, embedding = excluded.embedding`,
			c.ID, c.Source, c.Title, c.Position, c.Content, string(embedding))
		if err != nil {
			return fmt.Errorf("failed to upsert policy chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SearchPolicies implements storage.PolicyStore.
func (s *Store) SearchPolicies(ctx context.Context, embedding []float32, k int) ([]models.RetrievedPolicy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, title, position, content, embedding FROM policy_chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.PolicyChunk
	for rows.Next() {
		var (
			c     models.PolicyChunk
			title sql.NullString
			raw   string
		)
		if err := rows.Scan(&c.ID, &c.Source, &title, &c.Position, &c.Content, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan policy chunk: %w", err)
		}
		c.Title = title.String
		if err := json.Unmarshal([]byte(raw), &c.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return storage.TopK(embedding, chunks, k), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertContract(ctx context.Context, db execer, c *models.ProcessedContract) error {
	extracted, err := json.Marshal(c.ExtractedData)
	if err != nil {
		return fmt.Errorf("failed to marshal extracted data: %w", err)
	}
	validation, err := json.Marshal(c.ValidationResult)
	if err != nil {
		return fmt.Errorf("failed to marshal validation result: %w", err)
	}
	routing, err := json.Marshal(c.RoutingDecision)
	if err != nil {
		return fmt.Errorf("failed to marshal routing decision: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO processed_contracts (`+contractColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Sender, c.Subject, c.SourceFile, c.Status, c.Route,
		string(extracted), string(validation), string(routing), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func insertLog(ctx context.Context, db execer, entry *models.ProcessingLog) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal log payload: %w", err)
	}
	var contractID any
	if entry.ContractID != nil {
		contractID = *entry.ContractID
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO processing_logs (id, contract_id, stage, message, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, contractID, entry.Stage, entry.Message, string(payload), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert processing log: %w", err)
	}
	return nil
}

const contractColumns = `id, sender, subject, source_file, status, route, extracted_data, validation_result, routing_decision, created_at, updated_at`

func prefixed(alias string) string {
	return alias + ".id, " + alias + ".sender, " + alias + ".subject, " + alias + ".source_file, " +
		alias + ".status, " + alias + ".route, " + alias + ".extracted_data, " + alias + ".validation_result, " +
		alias + ".routing_decision, " + alias + ".created_at, " + alias + ".updated_at"
}

// contractRow holds the raw columns of a processed_contracts row.
type contractRow struct {
	c                              models.ProcessedContract
	extracted, validation, routing string
}

func (r *contractRow) dest() []any {
	return []any{
		&r.c.ID, &r.c.Sender, &r.c.Subject, &r.c.SourceFile, &r.c.Status, &r.c.Route,
		&r.extracted, &r.validation, &r.routing, &r.c.CreatedAt, &r.c.UpdatedAt,
	}
}

func (r *contractRow) decode() (*models.ProcessedContract, error) {
	if err := json.Unmarshal([]byte(r.extracted), &r.c.ExtractedData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extracted data: %w", err)
	}
	if err := json.Unmarshal([]byte(r.validation), &r.c.ValidationResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation result: %w", err)
	}
	if err := json.Unmarshal([]byte(r.routing), &r.c.RoutingDecision); err != nil {
		return nil, fmt.Errorf("failed to unmarshal routing decision: %w", err)
	}
	c := r.c
	return &c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanContract returns sql.ErrNoRows unwrapped so callers can map it.
func scanContract(row scanner) (*models.ProcessedContract, error) {
	var r contractRow
	if err := row.Scan(r.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}
	return r.decode()
}
