package core

import (
	"errors"
	"strings"
	"time"
)

// Field names used by the submission gate and reported back to callers.
const (
	FieldFornecedor = "fornecedor"
	FieldCategoria  = "categoria"
	FieldBase       = "base"
	FieldValor      = "valor"
	FieldVencimento = "vencimento"
)

// ErrInvalidRecord is matched by every *ValidationError.
var ErrInvalidRecord = errors.New("invalid record")

// ValidationError lists the fields that blocked a submission.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid record: missing or invalid " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// RecordPayload is the form content submitted to create or edit a record.
type RecordPayload struct {
	Fornecedor string      `json:"fornecedor"`
	Categoria  Category    `json:"categoria"`
	Base       string      `json:"base"`
	Documento  string      `json:"documento"`
	Descricao  string      `json:"descricao"`
	Pedido     string      `json:"pedido"`
	Valor      AmountInput `json:"valor"`
	Vencimento string      `json:"vencimento"`
}

// Normalize trims text fields and cleans the order number. Optional fields
// end up as empty strings, never absent. Base is kept verbatim because it is
// the exact grouping key of the summary.
func (p RecordPayload) Normalize() RecordPayload {
	p.Fornecedor = strings.TrimSpace(p.Fornecedor)
	p.Categoria = Category(strings.TrimSpace(string(p.Categoria)))
	p.Documento = strings.TrimSpace(p.Documento)
	p.Descricao = strings.TrimSpace(p.Descricao)
	p.Pedido = NormalizePedido(p.Pedido)
	p.Vencimento = strings.TrimSpace(p.Vencimento)
	return p
}

// Validate applies the submission gate: fornecedor, categoria, base, valor and
// vencimento must be present and valor must be greater than zero. categoria
// must belong to the allowed set.
func (p RecordPayload) Validate(allowed []Category) error {
	var missing []string
	if p.Fornecedor == "" {
		missing = append(missing, FieldFornecedor)
	}
	if p.Categoria == "" || !ContainsCategory(allowed, p.Categoria) {
		missing = append(missing, FieldCategoria)
	}
	if strings.TrimSpace(p.Base) == "" {
		missing = append(missing, FieldBase)
	}
	if !p.Valor.Decimal().IsPositive() {
		missing = append(missing, FieldValor)
	}
	if _, err := ParseDate(p.Vencimento); err != nil {
		missing = append(missing, FieldVencimento)
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// Apply copies the payload onto rec. id and createdAt are left untouched.
func (p RecordPayload) Apply(rec *PurchaseRecord) {
	venc, _ := ParseDate(p.Vencimento)
	rec.Fornecedor = p.Fornecedor
	rec.Categoria = p.Categoria
	rec.Base = p.Base
	rec.Documento = p.Documento
	rec.Descricao = p.Descricao
	rec.Pedido = p.Pedido
	rec.Valor = p.Valor.Decimal()
	rec.Vencimento = venc
}

// NewRecord builds a record from a validated payload.
func NewRecord(id string, p RecordPayload, createdAt time.Time) PurchaseRecord {
	rec := PurchaseRecord{ID: id, CreatedAt: createdAt.UTC()}
	p.Apply(&rec)
	return rec
}
