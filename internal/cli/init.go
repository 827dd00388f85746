// Package cli holds the startup and shutdown plumbing shared by cmd/gestao
// and cmd/gestao-worker.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gestao/internal/config"
	applog "gestao/internal/log"
	"gestao/internal/storage"
)

// Mode selects which validation Bootstrap applies on top of the common one.
type Mode int

const (
	ModeServer Mode = iota
	ModeMirror
)

// Bootstrap loads .env if present, reads the configuration, installs the
// default slog logger configured by LOG_LEVEL and LOG_FORMAT, and validates
// the configuration for mode. It exits the process on invalid configuration.
func Bootstrap(mode Mode) (*slog.Logger, *config.Config) {
	// .env is a development convenience; production sets real variables.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := NewLogger(cfg)

	err := cfg.Validate()
	if err == nil && mode == ModeMirror {
		err = cfg.ValidateMirror()
	}
	if err != nil {
		Fatal(logger, "Configuration validation failed", "error", err)
	}
	return logger, cfg
}

// NewLogger builds the process logger from cfg and makes it the default.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(applog.NewHandler(os.Stdout, applog.ParseLevel(cfg.LogLevel), cfg.LogFormat))
	slog.SetDefault(logger)
	return logger
}

// Fatal logs msg at error level and exits with status 1.
func Fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}

// OpenSQLite opens the repository at dbPath or exits.
func OpenSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		Fatal(logger, "Failed to open SQLite repository", "error", err, "path", dbPath)
	}
	return repo
}

// ServeUntilSignal runs serve until it returns or SIGINT/SIGTERM arrives.
// Either way shutdown then runs with a context bounded by timeout. Errors
// from both are joined.
func ServeUntilSignal(logger *slog.Logger, timeout time.Duration, serve func() error, shutdown func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- serve() }()

	var serveErr error
	stopped := false
	select {
	case serveErr = <-served:
		stopped = true
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	shutdownErr := shutdown(shutdownCtx)
	if errors.Is(shutdownErr, context.DeadlineExceeded) {
		logger.Warn("Shutdown timeout reached", "timeout", timeout)
	}

	if !stopped {
		serveErr = <-served
	}
	return errors.Join(serveErr, shutdownErr)
}
