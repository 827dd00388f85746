// Package localstore persists the record set as a single JSON array stored
// under one well-known key, rewritten in full on every mutation.
package localstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gestao/internal/core"
	"gestao/internal/ports"
)

// DefaultKey is the storage key the dashboard has always used.
const DefaultKey = "base_spend_records"

// Store keeps the working copy in memory and flushes it to <dir>/<key>.json.
// Mutations are applied in memory first; a failed flush is logged and the
// mutation stands.
type Store struct {
	mu      sync.Mutex
	path    string
	records []core.PurchaseRecord
	now     func() time.Time
	newID   func() string
}

// New opens the store for key under dir. A missing file is an empty set and
// malformed content is logged and treated as empty.
func New(dir, key string) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := &Store{
		path:  filepath.Join(dir, key+".json"),
		now:   time.Now,
		newID: uuid.NewString,
	}
	s.records = s.load()
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// List implements ports.RecordLister.
func (s *Store) List(_ context.Context) ([]core.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.PurchaseRecord(nil), s.records...), nil
}

// Create implements ports.RecordWriter. id and createdAt are assigned when
// the caller left them empty.
func (s *Store) Create(ctx context.Context, rec core.PurchaseRecord) (core.PurchaseRecord, error) {
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(rec.ID) >= 0 {
		return core.PurchaseRecord{}, fmt.Errorf("record %s already exists", rec.ID)
	}
	s.records = append(s.records, rec)
	s.flush(ctx)
	return rec, nil
}

// Update implements ports.RecordWriter.
func (s *Store) Update(ctx context.Context, rec core.PurchaseRecord) (core.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(rec.ID)
	if i < 0 {
		return core.PurchaseRecord{}, fmt.Errorf("%w: %s", ports.ErrNotFound, rec.ID)
	}
	rec.CreatedAt = s.records[i].CreatedAt
	now := s.now().UTC()
	rec.UpdatedAt = &now
	s.records[i] = rec
	s.flush(ctx)
	return rec, nil
}

// Delete implements ports.RecordDeleter.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ports.ErrNotFound, id)
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.flush(ctx)
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// flush must be called with mu held.
func (s *Store) flush(ctx context.Context) {
	if err := s.write(); err != nil {
		slog.ErrorContext(ctx, "Failed to persist records",
			"path", s.path,
			"records", len(s.records),
			"error", err)
	}
}

func (s *Store) write() error {
	records := s.records
	if records == nil {
		records = []core.PurchaseRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// wireRecord is the persisted shape. Amounts may have been written as
// strings or numbers by older clients, so valor is decoded loosely.
type wireRecord struct {
	ID         string  `json:"id"`
	Fornecedor string  `json:"fornecedor"`
	Categoria  string  `json:"categoria"`
	Base       string  `json:"base"`
	Documento  string  `json:"documento"`
	Descricao  string  `json:"descricao"`
	Pedido     string  `json:"pedido"`
	Valor      any     `json:"valor"`
	Vencimento string  `json:"vencimento"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  *string `json:"updatedAt"`
}

func (s *Store) load() []core.PurchaseRecord {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		slog.Warn("Failed to read stored records, starting empty", "path", s.path, "error", err)
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var raw []wireRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		slog.Warn("Stored records are malformed, starting empty", "path", s.path, "error", err)
		return nil
	}

	records := make([]core.PurchaseRecord, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, w := range raw {
		rec := s.fromWire(w)
		if _, dup := seen[rec.ID]; dup {
			slog.Warn("Duplicate stored record id, skipping", "id", rec.ID)
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, rec)
	}
	if newestFirst(records) {
		slices.Reverse(records)
		slog.Info("Stored records were newest first, switched to creation order", "path", s.path)
	}
	slog.Info("Loaded stored records", "path", s.path, "count", len(records))
	return records
}

// newestFirst reports whether every record carries a creation time and the
// sequence runs from newest to oldest, the layout of files written by
// dashboards that prepended new records.
func newestFirst(records []core.PurchaseRecord) bool {
	if len(records) < 2 {
		return false
	}
	for i, r := range records {
		if r.CreatedAt.IsZero() {
			return false
		}
		if i > 0 && r.CreatedAt.After(records[i-1].CreatedAt) {
			return false
		}
	}
	return records[0].CreatedAt.After(records[len(records)-1].CreatedAt)
}

func (s *Store) fromWire(w wireRecord) core.PurchaseRecord {
	rec := core.PurchaseRecord{
		ID:         strings.TrimSpace(w.ID),
		Fornecedor: w.Fornecedor,
		Categoria:  core.Category(w.Categoria),
		Base:       w.Base,
		Documento:  w.Documento,
		Descricao:  w.Descricao,
		Pedido:     w.Pedido,
		Valor:      core.CoerceAmount(w.Valor),
	}
	if rec.ID == "" {
		rec.ID = s.newID()
		slog.Warn("Stored record without id, assigned a new one", "id", rec.ID)
	}
	if !core.IsKnownCategory(rec.Categoria) {
		slog.Warn("Stored record has unknown category", "id", rec.ID, "categoria", w.Categoria)
	}
	if w.Vencimento != "" {
		var d core.Date
		if err := d.UnmarshalJSON([]byte(w.Vencimento)); err != nil {
			slog.Warn("Stored record has invalid due date", "id", rec.ID, "vencimento", w.Vencimento)
		} else {
			rec.Vencimento = d
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	if w.UpdatedAt != nil {
		if t, err := time.Parse(time.RFC3339Nano, *w.UpdatedAt); err == nil {
			rec.UpdatedAt = &t
		}
	}
	return rec
}
