package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gestao/internal/amqp"
	"gestao/internal/localstore"
	"gestao/internal/ports"
	"gestao/internal/services"
	"gestao/internal/storage"
)

// Opened is a ready backend plus whatever must be released with it.
type Opened struct {
	Backend ports.Backend
	// Publisher is nil when record events are disabled or the broker was
	// unreachable at startup.
	Publisher services.EventPublisher
	// Remote is true when the backend assigns ids and timestamps itself.
	Remote bool

	closers []func() error
}

// Close releases the publisher and the backend, in that order.
func (o *Opened) Close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Factory opens backends.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Open validates cfg and opens the backend it names.
func (f *Factory) Open(ctx context.Context, cfg Config) (*Opened, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindLocal:
		return f.openLocal(ctx, cfg)
	default:
		return f.openSQLite(ctx, cfg)
	}
}

func (f *Factory) openLocal(ctx context.Context, cfg Config) (*Opened, error) {
	key := cfg.StorageKey
	if key == "" {
		key = localstore.DefaultKey
	}
	store, err := localstore.New(cfg.DataDir, key)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	f.logger.InfoContext(ctx, "Local backend ready", "path", store.Path())
	// Every mutation is already on disk, nothing to close.
	return &Opened{Backend: store}, nil
}

func (f *Factory) openSQLite(ctx context.Context, cfg Config) (*Opened, error) {
	repo, err := storage.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	opened := &Opened{Backend: repo, Remote: true}

	// Without a broker the mirror catches up from sync_status on its next
	// reconcile pass.
	if cfg.Events.Enabled() {
		client, err := amqp.NewClient(cfg.Events.URL, cfg.Events.Exchange, cfg.Events.Queue)
		if err != nil {
			f.logger.WarnContext(ctx, "Broker unreachable, record events disabled", "error", err)
		} else {
			opened.Publisher = client
			opened.closers = append(opened.closers, client.Close)
		}
	}
	opened.closers = append(opened.closers, repo.Close)

	f.logger.InfoContext(ctx, "SQLite backend ready",
		"db_path", cfg.DBPath,
		"events", opened.Publisher != nil)
	return opened, nil
}
