package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raphaelgruber/contractflow/internal/storage"
	"github.com/surrealdb/surrealdb.go"
)

// ErrTransactionConflict indicates a SurrealDB transaction conflict.
// This occurs when concurrent operations modify the same records.
// Callers should typically retry the operation.
var ErrTransactionConflict = errors.New("transaction conflict")

// Messages thrown from inside transactions, mapped back to storage sentinels.
const (
	throwNotPending = "review item is not pending"
	throwNotFound   = "review item not found"
)

// wrapQueryError inspects a SurrealDB error and wraps it with the matching
// sentinel when the message is recognized. Other errors pass through.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		switch {
		case strings.Contains(msg, throwNotPending):
			return fmt.Errorf("%w: %s", storage.ErrReviewNotPending, msg)
		case strings.Contains(msg, throwNotFound):
			return fmt.Errorf("%w: %s", storage.ErrNotFound, msg)
		case strings.Contains(msg, "Transaction conflict"):
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}
