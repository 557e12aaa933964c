package sheets

import (
	"context"

	"tally/internal/core"
)

// Ports for the spreadsheet backup target.
type (
	// LedgerAppender mirrors a transaction as one spreadsheet row.
	LedgerAppender interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// LedgerRowDeleter removes the row previously written for a transaction.
	// Deleting an ID that was never mirrored is not an error.
	LedgerRowDeleter interface {
		DeleteTransactionRow(ctx context.Context, transactionID int64) error
	}
)
