package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSyncMessage asks the backup worker to mirror one transaction.
// It carries only the id; the worker fetches the full record from storage.
type TransactionSyncMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionDeleteMessage asks the backup worker to remove a mirrored row.
// The record is already gone from storage, so the message carries the id the
// worker needs to locate the ledger row.
type TransactionDeleteMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope wraps both message kinds on the wire.
type Envelope struct {
	Kind   string          `json:"kind"` // "sync" or "delete"
	Sync   json.RawMessage `json:"sync,omitempty"`
	Delete json.RawMessage `json:"delete,omitempty"`
}

const (
	KindSync   = "sync"
	KindDelete = "delete"
)

func NewTransactionSyncMessage(id int64) *TransactionSyncMessage {
	return &TransactionSyncMessage{ID: id, Timestamp: time.Now()}
}

func NewTransactionDeleteMessage(id, userID int64) *TransactionDeleteMessage {
	return &TransactionDeleteMessage{ID: id, UserID: userID, Timestamp: time.Now()}
}

func encodeSync(m *TransactionSyncMessage) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Kind: KindSync, Sync: body})
}

func encodeDelete(m *TransactionDeleteMessage) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Kind: KindDelete, Delete: body})
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
