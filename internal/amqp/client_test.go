package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{63, 30 * time.Second}, // shift overflow still capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	syncBody, err := encodeSync(NewTransactionSyncMessage(42))
	if err != nil {
		t.Fatalf("encode sync: %v", err)
	}
	env, err := decodeEnvelope(syncBody)
	if err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	if env.Kind != KindSync {
		t.Fatalf("kind = %q, want %q", env.Kind, KindSync)
	}

	delBody, err := encodeDelete(NewTransactionDeleteMessage(42, 7))
	if err != nil {
		t.Fatalf("encode delete: %v", err)
	}
	env, err = decodeEnvelope(delBody)
	if err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if env.Kind != KindDelete {
		t.Fatalf("kind = %q, want %q", env.Kind, KindDelete)
	}

	if _, err := decodeEnvelope([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed envelope")
	}
}
