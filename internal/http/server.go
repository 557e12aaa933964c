// Package http exposes the tally REST API: user registration and login,
// per-user transactions, the category summary, and the CSV export.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"tally/internal/core"
	applog "tally/internal/log"
	appweb "tally/web"
)

// UserStore is the credential storage surface the handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
}

// SessionStore persists server-issued login tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s core.Session) error
	GetSession(ctx context.Context, token string) (core.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// TransactionAPI is the transaction surface, normally a services.TransactionService.
type TransactionAPI interface {
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id, userID int64) error
	List(ctx context.Context, userID int64) ([]core.Transaction, error)
	Summary(ctx context.Context, userID int64) ([]core.CategoryTotal, error)
}

// Options carries the runtime knobs the server needs from config.
type Options struct {
	Addr string
	// Development echoes internal error detail to clients and accepts any
	// CORS origin.
	Development bool
	// FrontendURL is the sole allowed origin in production.
	FrontendURL string
	SessionTTL  time.Duration
}

type Server struct {
	http.Server

	users    UserStore
	sessions SessionStore
	txs      TransactionAPI

	development bool
	frontendURL string
	sessionTTL  time.Duration

	logger      *applog.Logger
	rateLimiter *rateLimiter

	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, users UserStore, sessions SessionStore, txs TransactionAPI) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: opts.Addr,
		},
		users:       users,
		sessions:    sessions,
		txs:         txs,
		development: opts.Development,
		frontendURL: opts.FrontendURL,
		sessionTTL:  opts.SessionTTL,
		logger:      applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP),
		rateLimiter: newRateLimiter(),
		stopCleanup: make(chan struct{}),
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	s.Server.Handler = applog.Middleware(s.logger)(mux)

	go s.startSessionSweep()

	mux.HandleFunc("GET /health", s.with(s.handleHealth))

	mux.HandleFunc("POST /api/users/register", s.with(s.withCredentialRateLimit(s.handleRegister)))
	mux.HandleFunc("POST /api/users/login", s.with(s.withCredentialRateLimit(s.handleLogin)))
	mux.HandleFunc("POST /api/users/logout", s.with(s.withSession(s.handleLogout)))

	mux.HandleFunc("GET /api/transactions", s.with(s.withSession(s.handleListTransactions)))
	mux.HandleFunc("POST /api/transactions", s.with(s.withSession(s.handleCreateTransaction)))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.with(s.withSession(s.handleDeleteTransaction)))
	mux.HandleFunc("GET /api/transactions/export", s.with(s.withSession(s.handleExportCSV)))
	mux.HandleFunc("GET /api/transactions/summary", s.with(s.withSession(s.handleSummary)))

	// Preflight for the cross-origin client
	mux.HandleFunc("OPTIONS /api/", s.with(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Embedded single-page client
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		mux.Handle("/", http.FileServer(http.FS(sub)))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	return s
}

// startSessionSweep periodically removes expired sessions.
func (s *Server) startSessionSweep() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := s.sessions.DeleteExpiredSessions(ctx)
			cancel()
			if err != nil {
				slog.Error("Session sweep failed", "error", err)
			} else if n > 0 {
				slog.Debug("Session sweep completed", "sessions_removed", n)
			}
		case <-s.stopCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCleanup != nil {
			close(s.stopCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
