package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gestao/internal/core"
	"gestao/internal/ports"
)

func draft(base, valor string) core.PurchaseRecord {
	return core.PurchaseRecord{
		Fornecedor: "Fornecedor",
		Categoria:  core.Material,
		Base:       base,
		Valor:      decimal.RequireFromString(valor),
		Vencimento: core.NewDate(2025, 5, 20),
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	s, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if filepath.Base(s.Path()) != DefaultKey+".json" {
		t.Fatalf("unexpected path %s", s.Path())
	}
	recs, err := s.List(context.Background())
	if err != nil || len(recs) != 0 {
		t.Fatalf("expected empty list, got %v %v", recs, err)
	}
}

func TestMalformedFileFailsOpen(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultKey+".json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(dir, DefaultKey)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	recs, _ := s.List(context.Background())
	if len(recs) != 0 {
		t.Fatalf("expected empty set after malformed file, got %d", len(recs))
	}
}

func TestCreateAssignsIDAndPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, _ := New(dir, DefaultKey)
	fixed := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	got, err := s.Create(ctx, draft("PHB", "100.50"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID == "" || !got.CreatedAt.Equal(fixed) {
		t.Fatalf("server fields not assigned: %+v", got)
	}
	if _, err := s.Create(ctx, draft("REC", "20")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The whole array is on disk.
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var onDisk []map[string]any
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("file is not a JSON array: %v", err)
	}
	if len(onDisk) != 2 || onDisk[0]["base"] != "PHB" {
		t.Fatalf("unexpected file contents: %s", data)
	}
	if v, ok := onDisk[0]["valor"].(float64); !ok || v != 100.5 {
		t.Fatalf("valor should be stored as a number, got %#v", onDisk[0]["valor"])
	}

	// A fresh store sees the same records in the same order.
	reopened, _ := New(dir, DefaultKey)
	recs, _ := reopened.List(ctx)
	if len(recs) != 2 || recs[0].ID != got.ID || recs[1].Base != "REC" {
		t.Fatalf("reopened store mismatch: %+v", recs)
	}
	if !recs[0].Valor.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("valor = %s", recs[0].Valor)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := New(t.TempDir(), "k")
	created, _ := s.Create(ctx, draft("PHB", "1"))

	changed := created
	changed.Base = "THE"
	changed.CreatedAt = time.Time{}
	updated, err := s.Update(ctx, changed)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Base != "THE" || !updated.CreatedAt.Equal(created.CreatedAt) || updated.UpdatedAt == nil {
		t.Fatalf("unexpected update echo: %+v", updated)
	}

	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, created.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, created); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadCoercesLooseValues(t *testing.T) {
	dir := t.TempDir()
	content := `[
		{"id":"a","fornecedor":"X","categoria":"LOCAÇÃO","base":"PHB","valor":"150.25","vencimento":"2025-01-10","createdAt":"2025-01-01T10:00:00Z"},
		{"id":"b","fornecedor":"Y","categoria":"OUTROS","base":"REC","valor":42,"vencimento":"2025-02-10T00:00:00.000Z"},
		{"id":"c","fornecedor":"Z","categoria":"SERVIÇO","base":"REC","valor":"n/a","vencimento":""},
		{"id":"a","fornecedor":"dup","categoria":"SERVIÇO","base":"REC","valor":1}
	]`
	if err := os.WriteFile(filepath.Join(dir, "k.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := New(dir, "k")
	recs, _ := s.List(context.Background())
	if len(recs) != 3 {
		t.Fatalf("expected 3 records (duplicate skipped), got %d", len(recs))
	}

	cases := []struct {
		id    string
		valor string
		venc  string
	}{
		{"a", "150.25", "2025-01-10"},
		{"b", "42", "2025-02-10"},
		{"c", "0", ""},
	}
	for i, tc := range cases {
		r := recs[i]
		if r.ID != tc.id || !r.Valor.Equal(decimal.RequireFromString(tc.valor)) || r.Vencimento.String() != tc.venc {
			t.Fatalf("record %d = %+v, want id=%s valor=%s venc=%s", i, r, tc.id, tc.valor, tc.venc)
		}
	}
	if recs[1].Categoria != "OUTROS" {
		t.Fatalf("unknown categories must pass through, got %q", recs[1].Categoria)
	}

	ov := core.Aggregate(recs)
	if !ov.TotalGeral.Equal(decimal.RequireFromString("192.25")) {
		t.Fatalf("total = %s", ov.TotalGeral)
	}
}

func TestLoadNewestFirstFileIsReordered(t *testing.T) {
	dir := t.TempDir()
	content := `[
		{"id":"c","fornecedor":"Z","categoria":"SERVIÇO","base":"REC","valor":5,"vencimento":"2025-03-01","createdAt":"2025-01-03T10:00:00Z"},
		{"id":"b","fornecedor":"Y","categoria":"MATERIAL","base":"THE","valor":2,"vencimento":"2025-03-01","createdAt":"2025-01-02T10:00:00Z"},
		{"id":"a","fornecedor":"X","categoria":"LOCAÇÃO","base":"PHB","valor":1,"vencimento":"2025-03-01","createdAt":"2025-01-01T10:00:00Z"}
	]`
	if err := os.WriteFile(filepath.Join(dir, "k.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := New(dir, "k")
	ctx := context.Background()
	if _, err := s.Create(ctx, draft("SLZ", "1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	recs, _ := s.List(ctx)
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 4 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" || recs[3].Base != "SLZ" {
		t.Fatalf("records not in creation order: %v", ids)
	}
	ov := core.Aggregate(recs)
	if ov.Summaries[0].Base != "PHB" || ov.Summaries[3].Base != "SLZ" {
		t.Fatalf("summary order = %+v", ov.Summaries)
	}
}

func TestNewestFirst(t *testing.T) {
	at := func(day int) core.PurchaseRecord {
		return core.PurchaseRecord{CreatedAt: time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)}
	}
	tests := []struct {
		name string
		recs []core.PurchaseRecord
		want bool
	}{
		{"descending", []core.PurchaseRecord{at(3), at(2), at(1)}, true},
		{"ascending", []core.PurchaseRecord{at(1), at(2), at(3)}, false},
		{"mixed", []core.PurchaseRecord{at(2), at(3), at(1)}, false},
		{"all equal", []core.PurchaseRecord{at(1), at(1)}, false},
		{"missing time", []core.PurchaseRecord{at(3), {}, at(1)}, false},
		{"single", []core.PurchaseRecord{at(1)}, false},
	}
	for _, tt := range tests {
		if got := newestFirst(tt.recs); got != tt.want {
			t.Errorf("%s: newestFirst = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFailedFlushKeepsMutation(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, _ := New(dir, "k")
	// Point the store at a directory that does not exist so writes fail.
	s.path = filepath.Join(dir, "gone", "k.json")

	rec, err := s.Create(ctx, draft("BEL", "5"))
	if err != nil {
		t.Fatalf("Create should not fail on flush error: %v", err)
	}
	recs, _ := s.List(ctx)
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Fatalf("in-memory mutation lost: %+v", recs)
	}
}
