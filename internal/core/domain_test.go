package core

import (
	"strings"
	"testing"
	"time"
)

func TestValidateCredentials(t *testing.T) {
	cases := []struct {
		username, password string
		ok                 bool
	}{
		{"alice", "pw1", true},
		{"", "pw1", false},
		{"   ", "pw1", false},
		{"alice", "", false},
	}
	for i, tc := range cases {
		err := ValidateCredentials(tc.username, tc.password)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{Title: "Coffee", Amount: Money{Cents: -450}, Type: TypeExpense, Category: "Food & Dining"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	// Title and category are optional
	if err := (Transaction{Amount: Money{Cents: 100}}).Validate(); err != nil {
		t.Fatalf("expected ok for bare transaction, got %v", err)
	}
	long := Transaction{Title: strings.Repeat("x", 201)}
	if err := long.Validate(); err == nil {
		t.Fatal("expected error for long title")
	}
}

func TestCSVTypeFollowsSign(t *testing.T) {
	// Export type comes from the amount sign even when the stored type
	// disagrees.
	mismatched := Transaction{Amount: Money{Cents: 450}, Type: TypeExpense}
	if got := mismatched.CSVType(); got != TypeIncome {
		t.Fatalf("CSVType = %q, want %q", got, TypeIncome)
	}
	expense := Transaction{Amount: Money{Cents: -450}, Type: TypeIncome}
	if got := expense.CSVType(); got != TypeExpense {
		t.Fatalf("CSVType = %q, want %q", got, TypeExpense)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Hour)}
	if s.Expired(now) {
		t.Fatal("session should not be expired")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Fatal("session should be expired")
	}
}
