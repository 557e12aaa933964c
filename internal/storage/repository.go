package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrUsernameTaken maps the UNIQUE constraint on users.username; the
	// insert itself is the registration race's safety net.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

type Repository struct {
	db      *sql.DB
	queries *Queries
}

func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a new credential record. The username uniqueness check
// is the insert itself: a constraint violation becomes ErrUsernameTaken, so
// concurrent duplicate registrations cannot both succeed.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	u, err := r.queries.CreateUser(ctx, CreateUserParams{
		Username:     username,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ErrUsernameTaken
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "username", u.Username)
	return toCoreUser(u), nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return toCoreUser(u), nil
}

func (r *Repository) CreateSession(ctx context.Context, s core.Session) error {
	err := r.queries.CreateSession(ctx, CreateSessionParams{
		Token:     s.Token,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, token string) (core.Session, error) {
	s, err := r.queries.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Session{}, ErrNotFound
		}
		return core.Session{}, fmt.Errorf("get session: %w", err)
	}
	return core.Session{
		Token:     s.Token,
		UserID:    s.UserID,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}, nil
}

func (r *Repository) DeleteSession(ctx context.Context, token string) error {
	if err := r.queries.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions sweeps sessions past their expiry.
func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	date := t.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		UserID:      t.UserID,
		Title:       t.Title,
		AmountCents: t.Amount.Cents,
		Type:        t.Type,
		Category:    t.Category,
		Date:        date,
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", row.ID,
		"user_id", row.UserID,
		"title", row.Title,
		"amount_cents", row.AmountCents)

	return toCoreTransaction(row), nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toCoreTransaction(row), nil
}

// ListTransactions returns the user's transactions ordered by date
// descending, newest id first among equal dates.
func (r *Repository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = toCoreTransaction(row)
	}
	return out, nil
}

// DeleteTransaction removes the transaction matching both id and user.
// Deleting a missing or foreign transaction is a no-op, not an error.
func (r *Repository) DeleteTransaction(ctx context.Context, id, userID int64) error {
	n, err := r.queries.DeleteTransaction(ctx, DeleteTransactionParams{ID: id, UserID: userID})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Delete matched no transaction", "id", id, "user_id", userID)
	}
	return nil
}

// SummaryByCategory returns the signed per-category sums for a user.
// Grouping order is whatever the store yields; it is not guaranteed stable.
func (r *Repository) SummaryByCategory(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	sums, err := r.queries.SumByCategory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("summary by category: %w", err)
	}
	out := make([]core.CategoryTotal, len(sums))
	for i, s := range sums {
		out[i] = core.CategoryTotal{
			Category: s.Category,
			Total:    core.Money{Cents: s.TotalCents},
		}
	}
	return out, nil
}

// ListUnsynced returns transactions not yet mirrored to the backup ledger.
func (r *Repository) ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListUnsynced(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unsynced transactions: %w", err)
	}
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = toCoreTransaction(row)
	}
	return out, nil
}

// MarkSynced records a successful mirror of a transaction.
func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkTransactionSynced(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

func toCoreUser(u User) core.User {
	return core.User{
		ID:        u.ID,
		Username:  u.Username,
		Password:  u.PasswordHash,
		CreatedAt: u.CreatedAt,
	}
}

func toCoreTransaction(t Transaction) core.Transaction {
	return core.Transaction{
		ID:       t.ID,
		UserID:   t.UserID,
		Title:    t.Title,
		Amount:   core.Money{Cents: t.AmountCents},
		Type:     t.Type,
		Category: t.Category,
		Date:     t.Date,
	}
}

// isUniqueViolation detects a sqlite UNIQUE constraint failure. The driver
// reports these as plain errors, so match on the well-known message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
