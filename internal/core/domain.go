package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeExpense = "expense"
	TypeIncome  = "income"
)

type (
	// User is a credential record. The password hash never leaves the server.
	User struct {
		ID        int64     `json:"userId"`
		Username  string    `json:"username"`
		Password  string    `json:"-"`
		CreatedAt time.Time `json:"-"`
	}

	// Transaction is one financial record belonging to a user. Amount is
	// signed: negative for expenses, positive for income. The stored Type
	// field is informational only; nothing ties it to the amount sign.
	Transaction struct {
		ID       int64     `json:"id"`
		UserID   int64     `json:"userId"`
		Title    string    `json:"title"`
		Amount   Money     `json:"amount"`
		Type     string    `json:"type"`
		Category string    `json:"category"`
		Date     time.Time `json:"date"`
	}

	// CategoryTotal is the signed sum of amounts for one category.
	CategoryTotal struct {
		Category string `json:"category"`
		Total    Money  `json:"total"`
	}

	// Session is a server-issued login token with an expiry.
	Session struct {
		Token     string
		UserID    int64
		CreatedAt time.Time
		ExpiresAt time.Time
	}
)

var (
	ErrEmptyUsername = errors.New("empty username")
	ErrEmptyPassword = errors.New("empty password")
	ErrTitleTooLong  = errors.New("title too long (max 200 characters)")
)

// ValidateCredentials checks the register/login payload for required fields.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrEmptyUsername
	}
	if password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Validate applies the store-level constraints on a transaction payload.
// The contract is deliberately permissive: title, type and category are
// optional, and the amount sign is not checked against the type field.
func (t Transaction) Validate() error {
	if len(t.Title) > 200 {
		return ErrTitleTooLong
	}
	return nil
}

// CSVType derives the export type from the amount sign, regardless of the
// stored type field.
func (t Transaction) CSVType() string {
	if t.Amount.Cents < 0 {
		return TypeExpense
	}
	return TypeIncome
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
