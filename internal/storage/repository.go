package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"gestao/internal/core"
	"gestao/internal/ports"

	_ "modernc.org/sqlite"
)

// timestampLayout has a fixed-width fraction so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Sync states of the Sheets mirror.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
	newID   func() string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("Database schema ready", "path", dbPath, "version", version)

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
		newID:   uuid.NewString,
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// List implements ports.RecordLister
func (r *SQLiteRepository) List(ctx context.Context) ([]core.PurchaseRecord, error) {
	rows, err := r.queries.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	records := make([]core.PurchaseRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(ctx, row))
	}
	return records, nil
}

// Get returns a single record by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.PurchaseRecord, error) {
	row, err := r.queries.GetRecord(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PurchaseRecord{}, fmt.Errorf("%w: %s", ports.ErrNotFound, id)
	}
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("get record %s: %w", id, err)
	}
	return rowToRecord(ctx, row), nil
}

// Create implements ports.RecordWriter. The database assigns id and
// created_at and the stored row is returned.
func (r *SQLiteRepository) Create(ctx context.Context, rec core.PurchaseRecord) (core.PurchaseRecord, error) {
	id := r.newID()
	err := r.queries.CreateRecord(ctx, CreateRecordParams{
		ID:         id,
		Fornecedor: rec.Fornecedor,
		Categoria:  string(rec.Categoria),
		Base:       rec.Base,
		Documento:  rec.Documento,
		Descricao:  rec.Descricao,
		Pedido:     rec.Pedido,
		Valor:      rec.Valor.String(),
		Vencimento: rec.Vencimento.String(),
		CreatedAt:  r.now().UTC().Format(timestampLayout),
	})
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("create record: %w", err)
	}

	slog.InfoContext(ctx, "Record saved to SQLite",
		"id", id,
		"base", rec.Base,
		"categoria", rec.Categoria,
		"valor", rec.Valor.String())

	return r.Get(ctx, id)
}

// Update implements ports.RecordWriter.
func (r *SQLiteRepository) Update(ctx context.Context, rec core.PurchaseRecord) (core.PurchaseRecord, error) {
	n, err := r.queries.UpdateRecord(ctx, UpdateRecordParams{
		Fornecedor: rec.Fornecedor,
		Categoria:  string(rec.Categoria),
		Base:       rec.Base,
		Documento:  rec.Documento,
		Descricao:  rec.Descricao,
		Pedido:     rec.Pedido,
		Valor:      rec.Valor.String(),
		Vencimento: rec.Vencimento.String(),
		UpdatedAt:  r.now().UTC().Format(timestampLayout),
		ID:         rec.ID,
	})
	if err != nil {
		return core.PurchaseRecord{}, fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	if n == 0 {
		return core.PurchaseRecord{}, fmt.Errorf("%w: %s", ports.ErrNotFound, rec.ID)
	}

	slog.InfoContext(ctx, "Record updated in SQLite", "id", rec.ID)
	return r.Get(ctx, rec.ID)
}

// Delete implements ports.RecordDeleter
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	n, err := r.queries.DeleteRecord(ctx, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ports.ErrNotFound, id)
	}

	slog.InfoContext(ctx, "Record deleted from SQLite", "id", id)
	return nil
}

// PendingSyncRecord is a record that still has to reach the mirror.
type PendingSyncRecord struct {
	Record     core.PurchaseRecord
	SyncStatus string
}

// GetPendingSync returns records whose mirror state is pending or error.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncRecord, error) {
	rows, err := r.queries.GetPendingSyncRecords(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync records: %w", err)
	}

	pending := make([]PendingSyncRecord, len(rows))
	for i, row := range rows {
		pending[i] = PendingSyncRecord{
			Record:     rowToRecord(ctx, row),
			SyncStatus: row.SyncStatus,
		}
	}
	return pending, nil
}

// MarkSynced marks a record as mirrored
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	err := r.queries.MarkRecordSynced(ctx, r.now().UTC().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("mark record synced: %w", err)
	}

	slog.InfoContext(ctx, "Record marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a record as having sync errors
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	err := r.queries.MarkRecordSyncError(ctx, id)
	if err != nil {
		return fmt.Errorf("mark record sync error: %w", err)
	}

	slog.WarnContext(ctx, "Record marked with sync error", "id", id)
	return nil
}

// rowToRecord converts a stored row. valor is stored as text and coerced
// here, so a bad value reads as zero instead of failing the listing.
func rowToRecord(ctx context.Context, row PurchaseRecordRow) core.PurchaseRecord {
	rec := core.PurchaseRecord{
		ID:         row.ID,
		Fornecedor: row.Fornecedor,
		Categoria:  core.Category(row.Categoria),
		Base:       row.Base,
		Documento:  row.Documento,
		Descricao:  row.Descricao,
		Pedido:     row.Pedido,
		Valor:      core.CoerceAmount(row.Valor),
	}

	if venc, err := core.ParseDate(row.Vencimento); err == nil {
		rec.Vencimento = venc
	} else {
		slog.WarnContext(ctx, "Stored record has invalid due date", "id", row.ID, "vencimento", row.Vencimento)
	}
	if !core.IsKnownCategory(rec.Categoria) {
		slog.WarnContext(ctx, "Stored record has unknown category", "id", row.ID, "categoria", row.Categoria)
	}
	if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	if row.UpdatedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, row.UpdatedAt.String); err == nil {
			rec.UpdatedAt = &t
		}
	}
	return rec
}
