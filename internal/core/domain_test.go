package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validPayload() RecordPayload {
	return RecordPayload{
		Fornecedor: "Locadora Norte",
		Categoria:  Locacao,
		Base:       "PHB",
		Valor:      "100",
		Vencimento: "2025-04-30",
	}
}

func TestPayloadValidate(t *testing.T) {
	latest, _ := CategorySet(LatestCategoryVersion)

	if err := validPayload().Normalize().Validate(latest); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		edit  func(*RecordPayload)
		field string
	}{
		{"missing fornecedor", func(p *RecordPayload) { p.Fornecedor = "  " }, FieldFornecedor},
		{"missing categoria", func(p *RecordPayload) { p.Categoria = "" }, FieldCategoria},
		{"unknown categoria", func(p *RecordPayload) { p.Categoria = "OUTROS" }, FieldCategoria},
		{"missing base", func(p *RecordPayload) { p.Base = "" }, FieldBase},
		{"blank base", func(p *RecordPayload) { p.Base = "   " }, FieldBase},
		{"missing valor", func(p *RecordPayload) { p.Valor = "" }, FieldValor},
		{"zero valor", func(p *RecordPayload) { p.Valor = "0" }, FieldValor},
		{"negative valor", func(p *RecordPayload) { p.Valor = "-3" }, FieldValor},
		{"missing vencimento", func(p *RecordPayload) { p.Vencimento = "" }, FieldVencimento},
		{"bad vencimento", func(p *RecordPayload) { p.Vencimento = "30/04/2025" }, FieldVencimento},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload()
			tc.edit(&p)
			err := p.Normalize().Validate(latest)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0] != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestPayloadValidateReportsEveryField(t *testing.T) {
	err := RecordPayload{}.Normalize().Validate(nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 5 {
		t.Fatalf("expected 5 fields, got %v", verr.Fields)
	}
}

func TestCategoryVersions(t *testing.T) {
	v1, err := CategorySet(1)
	if err != nil || len(v1) != 3 {
		t.Fatalf("v1 = %v, %v", v1, err)
	}
	if ContainsCategory(v1, HoraExtra) {
		t.Fatalf("HORA_EXTRA must not be part of v1")
	}
	v2, _ := CategorySet(2)
	if !ContainsCategory(v2, HoraExtra) {
		t.Fatalf("HORA_EXTRA must be part of v2")
	}
	if _, err := CategorySet(9); err == nil {
		t.Fatalf("expected error for unknown version")
	}

	p := validPayload()
	p.Categoria = HoraExtra
	if err := p.Normalize().Validate(v1); err == nil {
		t.Fatalf("HORA_EXTRA accepted under v1")
	}
}

func TestNormalizeOptionalFields(t *testing.T) {
	p := validPayload()
	p.Documento = "  NF 123 "
	p.Pedido = "12a34567"
	n := p.Normalize()
	if n.Documento != "NF 123" || n.Descricao != "" || n.Pedido != "123456" {
		t.Fatalf("unexpected normalization: %+v", n)
	}
}

func TestNormalizeKeepsBaseVerbatim(t *testing.T) {
	p := validPayload()
	p.Base = " phb "
	latest, _ := CategorySet(LatestCategoryVersion)
	n := p.Normalize()
	if n.Base != " phb " {
		t.Fatalf("Base = %q, want it untouched", n.Base)
	}
	if err := n.Validate(latest); err != nil {
		t.Fatalf("padded base rejected: %v", err)
	}
	rec := NewRecord("x", n, time.Now())
	if rec.Base != " phb " {
		t.Fatalf("record Base = %q", rec.Base)
	}
}

func TestNewRecordAndJSON(t *testing.T) {
	created := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	r := NewRecord("abc", validPayload().Normalize(), created)
	if err := r.Validate(); err != nil {
		t.Fatalf("record invalid: %v", err)
	}
	if !r.Valor.Equal(decimal.NewFromInt(100)) || r.Vencimento.String() != "2025-04-30" {
		t.Fatalf("unexpected record: %+v", r)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"valor":100,`, `"vencimento":"2025-04-30"`, `"documento":""`, `"createdAt":"2025-04-01T09:30:00Z"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("json %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "updatedAt") {
		t.Fatalf("zero updatedAt should be omitted: %s", s)
	}
}

func TestDateUnmarshalAcceptsTimestamps(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-02-10T00:00:00.000Z"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2025-02-10" || d.FormatBR() != "10/02/2025" {
		t.Fatalf("unexpected date %s", d)
	}
	if err := json.Unmarshal([]byte(`"not a date"`), &d); err == nil {
		t.Fatalf("expected error")
	}
}
