package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of *sql.DB used by the query layer, so queries can run
// inside a transaction as well.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Row types mirror the table columns.

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Transaction struct {
	ID          int64
	UserID      int64
	Title       string
	AmountCents int64
	Type        string
	Category    string
	Date        time.Time
	CreatedAt   time.Time
	SyncedAt    sql.NullTime
}

type CategorySum struct {
	Category   string
	TotalCents int64
}

type CreateUserParams struct {
	Username     string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const query = `INSERT INTO users (username, password_hash) VALUES (?, ?)
		RETURNING id, username, password_hash, created_at`
	var u User
	err := q.db.QueryRowContext(ctx, query, arg.Username, arg.PasswordHash).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const query = `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`
	var u User
	err := q.db.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

type CreateSessionParams struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	const query = `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query, arg.Token, arg.UserID, arg.ExpiresAt)
	return err
}

func (q *Queries) GetSession(ctx context.Context, token string) (Session, error) {
	const query = `SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`
	var s Session
	err := q.db.QueryRowContext(ctx, query, token).
		Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	return s, err
}

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type CreateTransactionParams struct {
	UserID      int64
	Title       string
	AmountCents int64
	Type        string
	Category    string
	Date        time.Time
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	const query = `INSERT INTO transactions (user_id, title, amount_cents, type, category, date)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id, user_id, title, amount_cents, type, category, date, created_at, synced_at`
	var t Transaction
	err := q.db.QueryRowContext(ctx, query,
		arg.UserID, arg.Title, arg.AmountCents, arg.Type, arg.Category, arg.Date).
		Scan(&t.ID, &t.UserID, &t.Title, &t.AmountCents, &t.Type, &t.Category, &t.Date, &t.CreatedAt, &t.SyncedAt)
	return t, err
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	const query = `SELECT id, user_id, title, amount_cents, type, category, date, created_at, synced_at
		FROM transactions WHERE id = ?`
	var t Transaction
	err := q.db.QueryRowContext(ctx, query, id).
		Scan(&t.ID, &t.UserID, &t.Title, &t.AmountCents, &t.Type, &t.Category, &t.Date, &t.CreatedAt, &t.SyncedAt)
	return t, err
}

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID int64) ([]Transaction, error) {
	const query = `SELECT id, user_id, title, amount_cents, type, category, date, created_at, synced_at
		FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC`
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.AmountCents, &t.Type, &t.Category, &t.Date, &t.CreatedAt, &t.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type DeleteTransactionParams struct {
	ID     int64
	UserID int64
}

func (q *Queries) DeleteTransaction(ctx context.Context, arg DeleteTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SumByCategory(ctx context.Context, userID int64) ([]CategorySum, error) {
	const query = `SELECT category, SUM(amount_cents) FROM transactions WHERE user_id = ? GROUP BY category`
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategorySum
	for rows.Next() {
		var cs CategorySum
		if err := rows.Scan(&cs.Category, &cs.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (q *Queries) ListUnsynced(ctx context.Context, limit int64) ([]Transaction, error) {
	const query = `SELECT id, user_id, title, amount_cents, type, category, date, created_at, synced_at
		FROM transactions WHERE synced_at IS NULL ORDER BY id LIMIT ?`
	rows, err := q.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.AmountCents, &t.Type, &t.Category, &t.Date, &t.CreatedAt, &t.SyncedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *Queries) MarkTransactionSynced(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE transactions SET synced_at = ? WHERE id = ?`, at, id)
	return err
}
