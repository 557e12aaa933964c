package services

import (
	"context"
	"errors"
	"testing"

	"tally/internal/core"
)

type fakeStore struct {
	created      []core.Transaction
	deleted      [][2]int64
	summary      []core.CategoryTotal
	summaryCalls int
	createErr    error
	deleteErr    error
}

func (f *fakeStore) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	t.ID = int64(len(f.created) + 1)
	f.created = append(f.created, t)
	return t, nil
}

func (f *fakeStore) DeleteTransaction(ctx context.Context, id, userID int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, [2]int64{id, userID})
	return nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return f.created, nil
}

func (f *fakeStore) SummaryByCategory(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	f.summaryCalls++
	return f.summary, nil
}

type fakePublisher struct {
	syncs, deletes []int64
	err            error
}

func (f *fakePublisher) PublishTransactionSync(ctx context.Context, id int64) error {
	f.syncs = append(f.syncs, id)
	return f.err
}

func (f *fakePublisher) PublishTransactionDelete(ctx context.Context, id, userID int64) error {
	f.deletes = append(f.deletes, id)
	return f.err
}

func TestCreatePublishesSync(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)

	created, err := svc.Create(context.Background(), core.Transaction{UserID: 1, Amount: core.Money{Cents: -450}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("id = %d", created.ID)
	}
	if len(pub.syncs) != 1 || pub.syncs[0] != 1 {
		t.Fatalf("syncs = %v", pub.syncs)
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(store, pub)

	if _, err := svc.Create(context.Background(), core.Transaction{UserID: 1}); err != nil {
		t.Fatalf("publish failure should not fail the create: %v", err)
	}
	if len(store.created) != 1 {
		t.Fatal("transaction should still be stored")
	}
}

func TestCreateStoreError(t *testing.T) {
	store := &fakeStore{createErr: errors.New("disk full")}
	svc := NewTransactionService(store, &fakePublisher{})

	if _, err := svc.Create(context.Background(), core.Transaction{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteWithoutPublisher(t *testing.T) {
	store := &fakeStore{}
	svc := NewTransactionService(store, nil)

	if err := svc.Delete(context.Background(), 3, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != [2]int64{3, 1} {
		t.Fatalf("deleted = %v", store.deleted)
	}
}

func TestDeletePublishes(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewTransactionService(store, pub)

	if err := svc.Delete(context.Background(), 9, 4); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(pub.deletes) != 1 || pub.deletes[0] != 9 {
		t.Fatalf("deletes = %v", pub.deletes)
	}
}

func TestSummaryCached(t *testing.T) {
	store := &fakeStore{summary: []core.CategoryTotal{{Category: "food", Total: core.Money{Cents: -450}}}}
	svc := NewTransactionService(store, nil)

	for i := 0; i < 3; i++ {
		totals, err := svc.Summary(context.Background(), 1)
		if err != nil {
			t.Fatalf("summary: %v", err)
		}
		if len(totals) != 1 || totals[0].Total.Cents != -450 {
			t.Fatalf("totals = %+v", totals)
		}
	}
	if store.summaryCalls != 1 {
		t.Fatalf("store queried %d times, want 1", store.summaryCalls)
	}

	// Separate users do not share cache entries
	if _, err := svc.Summary(context.Background(), 2); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if store.summaryCalls != 2 {
		t.Fatalf("store queried %d times, want 2", store.summaryCalls)
	}
}

func TestSummaryCacheInvalidatedOnMutation(t *testing.T) {
	store := &fakeStore{}
	svc := NewTransactionService(store, nil)

	if _, err := svc.Summary(context.Background(), 1); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if _, err := svc.Create(context.Background(), core.Transaction{UserID: 1, Amount: core.Money{Cents: -100}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Summary(context.Background(), 1); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if store.summaryCalls != 2 {
		t.Fatalf("create did not invalidate the cache, calls=%d", store.summaryCalls)
	}

	if err := svc.Delete(context.Background(), 1, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Summary(context.Background(), 1); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if store.summaryCalls != 3 {
		t.Fatalf("delete did not invalidate the cache, calls=%d", store.summaryCalls)
	}
}

func TestSummaryReturnsPrivateCopies(t *testing.T) {
	store := &fakeStore{summary: []core.CategoryTotal{{Category: "food", Total: core.Money{Cents: -450}}}}
	svc := NewTransactionService(store, nil)

	// Mutating either the miss-path or hit-path result must not leak into
	// later reads through the cache.
	first, err := svc.Summary(context.Background(), 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	first[0].Total.Cents = 9999

	second, err := svc.Summary(context.Background(), 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if second[0].Total.Cents != -450 {
		t.Fatalf("cached total corrupted by caller mutation: %d", second[0].Total.Cents)
	}
	second[0].Category = "clobbered"

	third, err := svc.Summary(context.Background(), 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if third[0].Category != "food" {
		t.Fatalf("cached category corrupted by caller mutation: %q", third[0].Category)
	}
	if store.summaryCalls != 1 {
		t.Fatalf("store queried %d times, want 1", store.summaryCalls)
	}
}
