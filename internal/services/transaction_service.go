package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"log/slog"

	"tally/internal/cache"
	"tally/internal/core"
)

// TransactionStore is the storage surface the service needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID int64) error
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
	SummaryByCategory(ctx context.Context, userID int64) ([]core.CategoryTotal, error)
}

// EventPublisher pushes backup events to the worker queue.
type EventPublisher interface {
	PublishTransactionSync(ctx context.Context, id int64) error
	PublishTransactionDelete(ctx context.Context, id, userID int64) error
}

// TransactionService persists transactions and notifies the backup pipeline.
// Publish failures never fail the request; the record is already durable and
// the worker's periodic backfill covers missed messages.
type TransactionService struct {
	store     TransactionStore
	publisher EventPublisher

	// summaries caches per-user category totals between mutations.
	summaries *cache.LRUCache[[]core.CategoryTotal]
}

func NewTransactionService(store TransactionStore, publisher EventPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		summaries: cache.NewLRUCache[[]core.CategoryTotal](256, 30*time.Second),
	}
}

// Create saves a transaction and queues it for ledger backup.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.summaries.Delete(summaryKey(t.UserID))

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionSync(ctx, created.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish sync message",
				"id", created.ID, "error", err)
		}
	}

	return created, nil
}

// Delete removes a transaction scoped to its owner and queues the mirror
// removal. Deleting a missing transaction is a no-op.
func (s *TransactionService) Delete(ctx context.Context, id, userID int64) error {
	if err := s.store.DeleteTransaction(ctx, id, userID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.summaries.Delete(summaryKey(userID))

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionDelete(ctx, id, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete message",
				"id", id, "error", err)
		}
	}

	return nil
}

// List returns the user's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, userID)
}

// Summary returns the user's per-category signed totals. Results are
// cached briefly and the cache is dropped on any mutation by that user.
func (s *TransactionService) Summary(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	key := summaryKey(userID)
	if totals, found := s.summaries.Get(key); found {
		out := make([]core.CategoryTotal, len(totals))
		copy(out, totals)
		return out, nil
	}

	totals, err := s.store.SummaryByCategory(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.summaries.Set(key, totals)
	out := make([]core.CategoryTotal, len(totals))
	copy(out, totals)
	return out, nil
}

func summaryKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
