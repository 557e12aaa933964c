package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets/memory"
	"tally/internal/storage"
)

type fakeStore struct {
	txs       map[int64]core.Transaction
	synced    map[int64]bool
	getErr    error
	markErr   error
	markCalls []int64
}

func newFakeStore(txs ...core.Transaction) *fakeStore {
	f := &fakeStore{
		txs:    make(map[int64]core.Transaction),
		synced: make(map[int64]bool),
	}
	for _, tx := range txs {
		f.txs[tx.ID] = tx
	}
	return f
}

func (f *fakeStore) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	if f.getErr != nil {
		return core.Transaction{}, f.getErr
	}
	tx, exists := f.txs[id]
	if !exists {
		return core.Transaction{}, storage.ErrNotFound
	}
	return tx, nil
}

func (f *fakeStore) ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range f.txs {
		if !f.synced[tx.ID] {
			out = append(out, tx)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSynced(ctx context.Context, id int64) error {
	f.markCalls = append(f.markCalls, id)
	if f.markErr != nil {
		return f.markErr
	}
	f.synced[id] = true
	return nil
}

func tx(id int64, cents int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		UserID:   1,
		Title:    "t",
		Amount:   core.Money{Cents: cents},
		Category: "misc",
		Date:     time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestHandleSyncMessage(t *testing.T) {
	store := newFakeStore(tx(7, -450))
	ledger := memory.New()
	w := NewBackupWorker(store, ledger, ledger, 10)

	msg := &amqp.TransactionSyncMessage{ID: 7, Timestamp: time.Now()}
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("sync: %v", err)
	}

	rows := ledger.Rows()
	if len(rows) != 1 || rows[0].ID != 7 {
		t.Fatalf("ledger rows=%+v", rows)
	}
	if !store.synced[7] {
		t.Fatal("transaction not marked synced")
	}
}

func TestHandleSyncMessageMissingTransaction(t *testing.T) {
	store := newFakeStore()
	ledger := memory.New()
	w := NewBackupWorker(store, ledger, ledger, 10)

	// A transaction deleted before the message arrives is not an error
	msg := &amqp.TransactionSyncMessage{ID: 99}
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("expected nil for missing transaction, got %v", err)
	}
	if len(ledger.Rows()) != 0 {
		t.Fatal("nothing should be mirrored")
	}
}

func TestHandleSyncMessageStorageFailure(t *testing.T) {
	store := newFakeStore(tx(1, 100))
	store.getErr = errors.New("database locked")
	ledger := memory.New()
	w := NewBackupWorker(store, ledger, ledger, 10)

	msg := &amqp.TransactionSyncMessage{ID: 1}
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error so the message gets requeued")
	}
}

func TestHandleDeleteMessage(t *testing.T) {
	store := newFakeStore(tx(3, -100))
	ledger := memory.New()
	w := NewBackupWorker(store, ledger, ledger, 10)

	if err := w.HandleSyncMessage(context.Background(), &amqp.TransactionSyncMessage{ID: 3}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	msg := &amqp.TransactionDeleteMessage{ID: 3, UserID: 1}
	if err := w.HandleDeleteMessage(context.Background(), msg); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(ledger.Rows()) != 0 {
		t.Fatalf("ledger rows=%+v", ledger.Rows())
	}

	// Deleting again is a no-op
	if err := w.HandleDeleteMessage(context.Background(), msg); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestHandleDeleteMessageWithoutDeleter(t *testing.T) {
	store := newFakeStore()
	ledger := memory.New()
	w := NewBackupWorker(store, ledger, nil, 10)

	if err := w.HandleDeleteMessage(context.Background(), &amqp.TransactionDeleteMessage{ID: 1}); err != nil {
		t.Fatalf("expected nil without deleter, got %v", err)
	}
}

func TestProcessPending(t *testing.T) {
	store := newFakeStore(tx(1, -100), tx(2, 200), tx(3, -300))
	store.synced[2] = true
	ledger := memory.New()
	w := NewBackupWorker(store, ledger, ledger, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("process pending: %v", err)
	}

	if len(ledger.Rows()) != 2 {
		t.Fatalf("expected 2 mirrored rows, got %+v", ledger.Rows())
	}
	for _, id := range []int64{1, 3} {
		if !store.synced[id] {
			t.Fatalf("transaction %d not marked synced", id)
		}
	}

	// A second pass has nothing to do
	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(ledger.Rows()) != 2 {
		t.Fatal("backfill mirrored already-synced transactions")
	}
}

func TestMirrorSurvivesMarkFailure(t *testing.T) {
	store := newFakeStore(tx(5, -100))
	store.markErr = errors.New("database locked")
	ledger := memory.New()
	w := NewBackupWorker(store, ledger, ledger, 10)

	// The append succeeded, so the handler acks despite the failed mark
	if err := w.HandleSyncMessage(context.Background(), &amqp.TransactionSyncMessage{ID: 5}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(ledger.Rows()) != 1 {
		t.Fatal("transaction should be in the ledger")
	}
	if len(store.markCalls) != 1 {
		t.Fatalf("mark calls=%v", store.markCalls)
	}
}
