// Package worker keeps the Google Sheets mirror in step with the relational
// backend.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gestao/internal/amqp"
	"gestao/internal/core"
	"gestao/internal/ports"
	"gestao/internal/storage"
)

// RecordSource is the slice of the SQLite repository the worker reads from.
type RecordSource interface {
	Get(ctx context.Context, id string) (core.PurchaseRecord, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncRecord, error)
	MarkSynced(ctx context.Context, id string) error
	MarkSyncError(ctx context.Context, id string) error
}

// Mirror is the sink records are copied to.
type Mirror interface {
	UpsertRecord(ctx context.Context, rec core.PurchaseRecord) error
	DeleteRecord(ctx context.Context, id string) error
}

// MirrorWorker applies record events to the mirror and reconciles rows whose
// sync_status is still pending or error.
type MirrorWorker struct {
	storage   RecordSource
	mirror    Mirror
	batchSize int
}

func NewMirrorWorker(storage RecordSource, mirror Mirror, batchSize int) *MirrorWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &MirrorWorker{
		storage:   storage,
		mirror:    mirror,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single record event from AMQP. A returned error
// makes the consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, event *amqp.RecordEvent) error {
	slog.InfoContext(ctx, "Processing record event",
		"type", event.Type,
		"id", event.ID)

	switch event.Type {
	case amqp.EventRecordCreated, amqp.EventRecordUpdated:
		rec, err := w.storage.Get(ctx, event.ID)
		if errors.Is(err, ports.ErrNotFound) {
			// Deleted before we got here; the delete event handles the row.
			slog.InfoContext(ctx, "Record no longer exists, skipping", "id", event.ID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get record from storage: %w", err)
		}
		return w.syncRecord(ctx, rec)

	case amqp.EventRecordDeleted:
		if err := w.mirror.DeleteRecord(ctx, event.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to delete mirrored record",
				"id", event.ID,
				"error", err,
				"timestamp", event.Timestamp)
			return fmt.Errorf("delete mirrored record: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

// ProcessPending processes records that haven't been mirrored yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *MirrorWorker) ProcessPending(ctx context.Context) (synced, failed int, err error) {
	return w.reconcile(ctx, w.batchSize)
}

// StartupSyncCheck reconciles a larger batch at worker startup to recover
// from missed messages or worker downtime.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.reconcile(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending records found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

func (w *MirrorWorker) reconcile(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.storage.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.InfoContext(ctx, "Processing pending records", "count", len(pending))

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		if err := w.syncRecord(ctx, p.Record); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror record",
				"id", p.Record.ID,
				"previous_status", p.SyncStatus,
				"error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *MirrorWorker) syncRecord(ctx context.Context, rec core.PurchaseRecord) error {
	if err := w.mirror.UpsertRecord(ctx, rec); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, rec.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", rec.ID, "error", markErr)
		}
		return fmt.Errorf("upsert mirrored record: %w", err)
	}

	// The row is on the sheet; a failed mark only means a redundant upsert later.
	if err := w.storage.MarkSynced(ctx, rec.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", rec.ID, "error", err)
	}

	slog.InfoContext(ctx, "Mirrored record",
		"id", rec.ID,
		"base", rec.Base,
		"valor", rec.Valor.String())
	return nil
}
