package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tally/internal/amqp"
	"tally/internal/cli"
	applog "tally/internal/log"
	gsheet "tally/internal/sheets/google"
	"tally/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting tally-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.MustInitStorage(logger, cfg.DBPath)
	defer repo.Close()

	// The ledger target is optional; without it the worker idles and leaves
	// messages queued for a configured instance.
	var sheetsClient *gsheet.Client
	if cfg.GoogleSpreadsheetID != "" {
		var err error
		sheetsClient, err = gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Ledger backup disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var backupWorker *worker.BackupWorker
	if sheetsClient != nil {
		backupWorker = worker.NewBackupWorker(repo, sheetsClient, sheetsClient, cfg.SyncBatchSize)

		// Catch up on anything missed while the worker was down
		logger.Info("Performing startup backfill")
		if err := backupWorker.ProcessPending(ctx); err != nil {
			logger.Error("Startup backfill failed", applog.FieldError, err)
			// Keep going; the periodic backfill retries
		}
	}

	if backupWorker != nil {
		go func() {
			if err := amqpClient.ConsumeMessages(ctx, backupWorker.HandleSyncMessage, backupWorker.HandleDeleteMessage); err != nil {
				if err != context.Canceled {
					logger.Error("Message consumption failed", applog.FieldError, err)
				}
				cancel()
			}
		}()

		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := backupWorker.ProcessPending(ctx); err != nil {
						logger.Error("Periodic backfill failed", applog.FieldError, err)
					}
				}
			}
		}()
	} else {
		logger.Info("Skipping message consumption - no ledger target available")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Worker stopped")
}
