package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gestao/internal/amqp"
	"gestao/internal/cache"
	"gestao/internal/cli"
	"gestao/internal/config"
	applog "gestao/internal/log"
	gsheet "gestao/internal/sheets/google"
	"gestao/internal/worker"
)

func main() {
	logger, cfg := cli.Bootstrap(cli.ModeMirror)
	logger.Info("Starting gestao-worker")

	workerLog := applog.New(applog.Config{Component: applog.ComponentWorker, Handler: logger.Handler()})
	if err := run(workerLog.Logger, cfg); err != nil {
		cli.Fatal(logger, "Worker failed", "error", err)
	}
	logger.Info("Worker stopped gracefully")
}

func run(logger *slog.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := cli.OpenSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheets, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return err
	}
	if err := sheets.EnsureHeader(ctx); err != nil {
		return err
	}
	logger.Info("Google Sheets mirror ready",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	caches := cache.NewManager()
	caches.Register("sheet_rows", sheets.RowCache())
	caches.StartCleanup(5 * time.Minute)
	defer func() {
		caches.Stop()
		caches.LogStats(logger)
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(repo, sheets, cfg.SyncBatchSize)

	// Catch up on anything written while the worker was down.
	if err := mirror.StartupSyncCheck(ctx); err != nil {
		logger.Error("Startup sync check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeRecordEvents(gctx, mirror.HandleEvent)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				synced, failed, err := mirror.ProcessPending(gctx)
				if err != nil {
					logger.Error("Periodic reconcile failed", "error", err)
					continue
				}
				if synced > 0 || failed > 0 {
					logger.Info("Periodic reconcile completed", "synced", synced, "failed", failed)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
