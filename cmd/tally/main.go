package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/cli"
	"tally/internal/core"
	apphttp "tally/internal/http"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	logger.Info("Starting tally server")

	cfg := cli.LoadAndValidateConfig(logger)

	// A storage failure at boot is logged, not fatal: the server still comes
	// up and individual requests report the problem.
	var (
		users    apphttp.UserStore
		sessions apphttp.SessionStore
		store    services.TransactionStore
	)
	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", applog.FieldError, err, "path", cfg.DBPath)
		down := &storeUnavailable{err: err}
		users, sessions, store = down, down, down
	} else {
		defer repo.Close()
		users, sessions, store = repo, repo, repo
	}

	// AMQP is optional; without it transactions are only backfilled by the
	// worker's periodic scan.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	txService := services.NewTransactionService(store, publisher)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:        ":" + cfg.Port,
		Development: cfg.Development(),
		FrontendURL: cfg.FrontendURL,
		SessionTTL:  cfg.SessionTTL,
	}, users, sessions, txService)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// storeUnavailable satisfies the storage interfaces when the database
// could not be opened. Every call reports the boot error.
type storeUnavailable struct {
	err error
}

func (s *storeUnavailable) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	return core.User{}, s.err
}

func (s *storeUnavailable) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return core.User{}, s.err
}

func (s *storeUnavailable) CreateSession(ctx context.Context, sess core.Session) error {
	return s.err
}

func (s *storeUnavailable) GetSession(ctx context.Context, token string) (core.Session, error) {
	return core.Session{}, s.err
}

func (s *storeUnavailable) DeleteSession(ctx context.Context, token string) error {
	return s.err
}

func (s *storeUnavailable) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	return 0, s.err
}

func (s *storeUnavailable) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	return core.Transaction{}, s.err
}

func (s *storeUnavailable) DeleteTransaction(ctx context.Context, id, userID int64) error {
	return s.err
}

func (s *storeUnavailable) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return nil, s.err
}

func (s *storeUnavailable) SummaryByCategory(ctx context.Context, userID int64) ([]core.CategoryTotal, error) {
	return nil, s.err
}
