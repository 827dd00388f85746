package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"gestao/internal/amqp"
	"gestao/internal/core"
	"gestao/internal/ports"
	"gestao/internal/storage"
)

type fakeSource struct {
	mu       sync.Mutex
	records  map[string]core.PurchaseRecord
	status   map[string]string
	order    []string
	getErr   error
	markFail bool
}

func newFakeSource(recs ...core.PurchaseRecord) *fakeSource {
	s := &fakeSource{records: map[string]core.PurchaseRecord{}, status: map[string]string{}}
	for _, r := range recs {
		s.records[r.ID] = r
		s.status[r.ID] = storage.SyncPending
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *fakeSource) Get(_ context.Context, id string) (core.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return core.PurchaseRecord{}, s.getErr
	}
	rec, ok := s.records[id]
	if !ok {
		return core.PurchaseRecord{}, ports.ErrNotFound
	}
	return rec, nil
}

func (s *fakeSource) GetPendingSync(_ context.Context, limit int) ([]storage.PendingSyncRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.PendingSyncRecord
	for _, id := range s.order {
		if st := s.status[id]; st != storage.SyncSynced && len(out) < limit {
			out = append(out, storage.PendingSyncRecord{Record: s.records[id], SyncStatus: st})
		}
	}
	return out, nil
}

func (s *fakeSource) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markFail {
		return errors.New("database is locked")
	}
	s.status[id] = storage.SyncSynced
	return nil
}

func (s *fakeSource) MarkSyncError(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = storage.SyncError
	return nil
}

type fakeMirror struct {
	mu      sync.Mutex
	rows    map[string]core.PurchaseRecord
	failIDs map[string]bool
	deletes []string
	delErr  error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: map[string]core.PurchaseRecord{}, failIDs: map[string]bool{}}
}

func (m *fakeMirror) UpsertRecord(_ context.Context, rec core.PurchaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIDs[rec.ID] {
		return errors.New("quota exceeded")
	}
	m.rows[rec.ID] = rec
	return nil
}

func (m *fakeMirror) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	m.deletes = append(m.deletes, id)
	delete(m.rows, id)
	return nil
}

func record(id, base string) core.PurchaseRecord {
	return core.PurchaseRecord{
		ID:         id,
		Fornecedor: "Fornecedor " + id,
		Categoria:  core.Material,
		Base:       base,
		Valor:      decimal.NewFromInt(10),
		Vencimento: core.NewDate(2025, 5, 1),
	}
}

func TestHandleEvent_CreatedUpserts(t *testing.T) {
	src := newFakeSource(record("a", "PHB"))
	mirror := newFakeMirror()
	w := NewMirrorWorker(src, mirror, 10)

	if err := w.HandleEvent(context.Background(), amqp.NewRecordEvent(amqp.EventRecordCreated, "a")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if _, ok := mirror.rows["a"]; !ok {
		t.Fatal("record not mirrored")
	}
	if src.status["a"] != storage.SyncSynced {
		t.Fatalf("status = %q, want synced", src.status["a"])
	}
}

func TestHandleEvent_UpsertFailureMarksError(t *testing.T) {
	src := newFakeSource(record("a", "PHB"))
	mirror := newFakeMirror()
	mirror.failIDs["a"] = true
	w := NewMirrorWorker(src, mirror, 10)

	if err := w.HandleEvent(context.Background(), amqp.NewRecordEvent(amqp.EventRecordUpdated, "a")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if src.status["a"] != storage.SyncError {
		t.Fatalf("status = %q, want error", src.status["a"])
	}
}

func TestHandleEvent_MissingRecordIsSkipped(t *testing.T) {
	w := NewMirrorWorker(newFakeSource(), newFakeMirror(), 10)
	if err := w.HandleEvent(context.Background(), amqp.NewRecordEvent(amqp.EventRecordCreated, "gone")); err != nil {
		t.Fatalf("expected nil for a record deleted meanwhile, got %v", err)
	}
}

func TestHandleEvent_StorageErrorIsReturned(t *testing.T) {
	src := newFakeSource(record("a", "PHB"))
	src.getErr = errors.New("disk I/O error")
	w := NewMirrorWorker(src, newFakeMirror(), 10)
	if err := w.HandleEvent(context.Background(), amqp.NewRecordEvent(amqp.EventRecordCreated, "a")); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleEvent_Deleted(t *testing.T) {
	mirror := newFakeMirror()
	mirror.rows["a"] = record("a", "PHB")
	w := NewMirrorWorker(newFakeSource(), mirror, 10)

	if err := w.HandleEvent(context.Background(), amqp.NewRecordEvent(amqp.EventRecordDeleted, "a")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(mirror.deletes) != 1 || len(mirror.rows) != 0 {
		t.Fatalf("row not deleted: %+v", mirror)
	}

	mirror.delErr = errors.New("503")
	if err := w.HandleEvent(context.Background(), amqp.NewRecordEvent(amqp.EventRecordDeleted, "b")); err == nil {
		t.Fatal("expected delete failure to surface")
	}
}

func TestHandleEvent_UnknownType(t *testing.T) {
	w := NewMirrorWorker(newFakeSource(), newFakeMirror(), 10)
	if err := w.HandleEvent(context.Background(), &amqp.RecordEvent{Type: "record.archived", ID: "a"}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestProcessPending(t *testing.T) {
	src := newFakeSource(record("a", "PHB"), record("b", "REC"), record("c", "SSA"))
	mirror := newFakeMirror()
	mirror.failIDs["b"] = true
	w := NewMirrorWorker(src, mirror, 10)

	synced, failed, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if synced != 2 || failed != 1 {
		t.Fatalf("synced=%d failed=%d, want 2 and 1", synced, failed)
	}
	if src.status["b"] != storage.SyncError {
		t.Fatalf("b status = %q", src.status["b"])
	}

	// Errored rows are retried on the next pass.
	delete(mirror.failIDs, "b")
	synced, failed, _ = w.ProcessPending(context.Background())
	if synced != 1 || failed != 0 || src.status["b"] != storage.SyncSynced {
		t.Fatalf("retry: synced=%d failed=%d status=%q", synced, failed, src.status["b"])
	}
}

func TestProcessPending_RespectsBatchSize(t *testing.T) {
	src := newFakeSource(record("a", "PHB"), record("b", "REC"), record("c", "SSA"))
	w := NewMirrorWorker(src, newFakeMirror(), 2)

	synced, _, _ := w.ProcessPending(context.Background())
	if synced != 2 {
		t.Fatalf("synced=%d, want 2", synced)
	}
	if err := w.StartupSyncCheck(context.Background()); err != nil {
		t.Fatalf("StartupSyncCheck: %v", err)
	}
	if src.status["c"] != storage.SyncSynced {
		t.Fatal("startup check should pick up the remaining record")
	}
}

func TestMarkSyncedFailureStillCountsAsMirrored(t *testing.T) {
	src := newFakeSource(record("a", "PHB"))
	src.markFail = true
	mirror := newFakeMirror()
	w := NewMirrorWorker(src, mirror, 10)

	synced, failed, err := w.ProcessPending(context.Background())
	if err != nil || synced != 1 || failed != 0 {
		t.Fatalf("synced=%d failed=%d err=%v", synced, failed, err)
	}
}

func TestMirrorWorker_WithSQLite(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "gestao.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	rec := record("", "BEL")
	created, err := repo.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	mirror := newFakeMirror()
	w := NewMirrorWorker(repo, mirror, 10)
	if err := w.HandleEvent(ctx, amqp.NewRecordEvent(amqp.EventRecordCreated, created.ID)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if got := mirror.rows[created.ID]; got.Base != "BEL" {
		t.Fatalf("mirrored %+v", got)
	}

	pending, err := repo.GetPendingSync(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending after mirror = %v, %v", pending, err)
	}
}
