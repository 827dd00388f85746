package ports

import (
	"context"
	"errors"

	"gestao/internal/core"
)

// ErrNotFound is returned by backends when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Ports for the persistence collaborator.
type (
	RecordLister interface {
		// List returns every persisted record in creation order.
		List(ctx context.Context) ([]core.PurchaseRecord, error)
	}

	// RecordWriter persists records and echoes the authoritative version.
	RecordWriter interface {
		Create(ctx context.Context, rec core.PurchaseRecord) (core.PurchaseRecord, error)
		Update(ctx context.Context, rec core.PurchaseRecord) (core.PurchaseRecord, error)
	}

	RecordDeleter interface {
		Delete(ctx context.Context, id string) error
	}

	Backend interface {
		RecordLister
		RecordWriter
		RecordDeleter
	}

	// Pinger is implemented by backends behind a connection.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
