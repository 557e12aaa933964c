// Package memory is an in-process ledger target used in tests and when
// no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows []core.Transaction
}

func New() *Store {
	return &Store{}
}

// AppendTransaction stores the transaction and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, t)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// DeleteTransactionRow removes the stored row for the given ID, if any.
func (s *Store) DeleteTransactionRow(_ context.Context, transactionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == transactionID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the mirrored transactions.
func (s *Store) Rows() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.rows))
	copy(out, s.rows)
	return out
}
