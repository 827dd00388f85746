package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"gestao/internal/amqp"
	"gestao/internal/core"
	"gestao/internal/ports"
	"gestao/internal/store"
)

// ErrBackend wraps every failure reported by the persistence backend.
var ErrBackend = errors.New("backend failure")

// EventPublisher announces record mutations. Publishing is best effort.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, event *amqp.RecordEvent) error
}

// RecordService orchestrates record operations: the submission gate, the
// backend round trip and the in-memory working set every view reads from.
// A backend error leaves the working set untouched.
type RecordService struct {
	backend    ports.Backend
	store      *store.Store
	publisher  EventPublisher
	categories []core.Category

	loads  singleflight.Group
	loaded atomic.Bool
}

// NewRecordService wires the service. publisher may be nil.
func NewRecordService(backend ports.Backend, st *store.Store, categories []core.Category, publisher EventPublisher) *RecordService {
	if st == nil {
		st = store.New()
	}
	return &RecordService{
		backend:    backend,
		store:      st,
		publisher:  publisher,
		categories: append([]core.Category(nil), categories...),
	}
}

// Load replaces the working set with the backend's full listing.
// Concurrent calls share one backend round trip.
func (s *RecordService) Load(ctx context.Context) (int, error) {
	v, err, shared := s.loads.Do("load", func() (any, error) {
		records, err := s.backend.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: list records: %w", ErrBackend, err)
		}
		if err := s.store.ReplaceAll(records); err != nil {
			return 0, fmt.Errorf("load records: %w", err)
		}
		s.loaded.Store(true)
		return len(records), nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Records loaded", "count", v, "shared", shared)
	return v.(int), nil
}

// Loaded reports whether at least one Load succeeded.
func (s *RecordService) Loaded() bool {
	return s.loaded.Load()
}

// Ping checks the backend when it can be checked. Backends without a
// connection, such as the local file, always pass.
func (s *RecordService) Ping(ctx context.Context) error {
	p, ok := s.backend.(ports.Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrBackend, err)
	}
	return nil
}

// Categories returns the category set submissions are checked against.
func (s *RecordService) Categories() []core.Category {
	return append([]core.Category(nil), s.categories...)
}

// Records returns the working set in creation order.
func (s *RecordService) Records() []core.PurchaseRecord {
	return s.store.List()
}

// Get returns one record from the working set.
func (s *RecordService) Get(id string) (core.PurchaseRecord, error) {
	rec, ok := s.store.Get(id)
	if !ok {
		return core.PurchaseRecord{}, fmt.Errorf("%w: %s", ports.ErrNotFound, id)
	}
	return rec, nil
}

// Overview aggregates the working set.
func (s *RecordService) Overview() core.Overview {
	return s.store.Summary()
}

// Create validates p, persists it and merges the authoritative echo into the
// working set.
func (s *RecordService) Create(ctx context.Context, p core.RecordPayload) (core.PurchaseRecord, error) {
	p = p.Normalize()
	if err := p.Validate(s.categories); err != nil {
		return core.PurchaseRecord{}, err
	}

	if !core.IsKnownBase(p.Base) {
		slog.InfoContext(ctx, "Record for a base outside the known list", "base", p.Base)
	}

	draft := core.PurchaseRecord{}
	p.Apply(&draft)

	created, err := s.backend.Create(ctx, draft)
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("%w: create record: %w", ErrBackend, err)
	}
	if err := s.store.Create(created); err != nil {
		slog.ErrorContext(ctx, "Persisted record could not join the working set", "id", created.ID, "error", err)
	}

	slog.DebugContext(ctx, "Backend echo merged", "op", "create", "id", created.ID)

	s.publish(ctx, amqp.EventRecordCreated, created.ID)
	return created, nil
}

// Update validates p and applies it to the record with the given id.
func (s *RecordService) Update(ctx context.Context, id string, p core.RecordPayload) (core.PurchaseRecord, error) {
	p = p.Normalize()
	if err := p.Validate(s.categories); err != nil {
		return core.PurchaseRecord{}, err
	}

	existing, ok := s.store.Get(id)
	if !ok {
		return core.PurchaseRecord{}, fmt.Errorf("%w: %s", ports.ErrNotFound, id)
	}
	p.Apply(&existing)

	updated, err := s.backend.Update(ctx, existing)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.forget(ctx, id, "update")
			return core.PurchaseRecord{}, err
		}
		return core.PurchaseRecord{}, fmt.Errorf("%w: update record %s: %w", ErrBackend, id, err)
	}
	if err := s.store.Update(updated); err != nil {
		slog.WarnContext(ctx, "Updated record left the working set meanwhile", "id", id, "error", err)
	}

	slog.DebugContext(ctx, "Backend echo merged", "op", "update", "id", id)
	s.publish(ctx, amqp.EventRecordUpdated, id)
	return updated, nil
}

// Delete removes the record from the backend and then from the working set.
func (s *RecordService) Delete(ctx context.Context, id string) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			s.forget(ctx, id, "delete")
			return err
		}
		return fmt.Errorf("%w: delete record %s: %w", ErrBackend, id, err)
	}
	if err := s.store.Delete(id); err != nil {
		slog.WarnContext(ctx, "Deleted record was not in the working set", "id", id)
	}

	slog.DebugContext(ctx, "Record removed from working set", "op", "delete", "id", id)
	s.publish(ctx, amqp.EventRecordDeleted, id)
	return nil
}

// forget drops a record the backend no longer has from the working set.
func (s *RecordService) forget(ctx context.Context, id, op string) {
	if err := s.store.Delete(id); err == nil {
		slog.WarnContext(ctx, "Dropped record missing from backend", "op", op, "id", id)
	}
}

// Export writes the full working set as an indented JSON array.
func (s *RecordService) Export(w io.Writer) error {
	records := s.store.List()
	if records == nil {
		records = []core.PurchaseRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

func (s *RecordService) publish(ctx context.Context, eventType amqp.EventType, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordEvent(ctx, amqp.NewRecordEvent(eventType, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"type", eventType,
			"id", id,
			"error", err)
	}
}
