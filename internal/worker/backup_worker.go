// Package worker mirrors stored transactions into the spreadsheet ledger,
// driven by AMQP messages with a periodic backfill as a safety net.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets"
	"tally/internal/storage"
)

// Store is the storage surface the worker needs.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id int64) error
}

// BackupWorker consumes sync and delete messages and keeps the ledger in
// step with the transaction store.
type BackupWorker struct {
	store     Store
	appender  sheets.LedgerAppender
	deleter   sheets.LedgerRowDeleter
	batchSize int
}

func NewBackupWorker(store Store, appender sheets.LedgerAppender, deleter sheets.LedgerRowDeleter, batchSize int) *BackupWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &BackupWorker{
		store:     store,
		appender:  appender,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage mirrors one transaction to the ledger. A transaction
// deleted before the message arrived is skipped, not retried.
func (w *BackupWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID)

	tx, err := w.store.GetTransaction(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Transaction gone before sync, skipping", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	return w.mirror(ctx, tx)
}

// HandleDeleteMessage removes the ledger row for a deleted transaction.
func (w *BackupWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.TransactionDeleteMessage) error {
	slog.InfoContext(ctx, "Processing delete message", "id", msg.ID, "user_id", msg.UserID)

	if w.deleter == nil {
		slog.WarnContext(ctx, "No ledger deleter configured, skipping", "id", msg.ID)
		return nil
	}

	if err := w.deleter.DeleteTransactionRow(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete ledger row: %w", err)
	}
	return nil
}

// ProcessPending mirrors transactions whose sync message was lost. Called
// periodically and once at startup.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListUnsynced(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unsynced transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	var failed int
	for _, tx := range pending {
		if err := w.mirror(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction", "id", tx.ID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("mirror pending transactions: %d of %d failed", failed, len(pending))
	}
	return nil
}

// mirror appends the transaction to the ledger and records the sync.
func (w *BackupWorker) mirror(ctx context.Context, tx core.Transaction) error {
	ref, err := w.appender.AppendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	if err := w.store.MarkSynced(ctx, tx.ID); err != nil {
		// The row is in the ledger; the backfill will retry the mark.
		slog.ErrorContext(ctx, "Failed to mark transaction synced", "id", tx.ID, "error", err)
	}

	slog.InfoContext(ctx, "Transaction mirrored to ledger",
		"id", tx.ID, "sheet_ref", ref, "amount_cents", tx.Amount.Cents)
	return nil
}
