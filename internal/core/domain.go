package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// PurchaseRecord is one purchase/contract line item.
	PurchaseRecord struct {
		ID         string          `json:"id"`
		Fornecedor string          `json:"fornecedor"`
		Categoria  Category        `json:"categoria"`
		Base       string          `json:"base"`
		Documento  string          `json:"documento"` // N. Nota/Boleto/Fatura
		Descricao  string          `json:"descricao"`
		Pedido     string          `json:"pedido"` // up to 6 digits
		Valor      decimal.Decimal `json:"valor"`
		Vencimento Date            `json:"vencimento"`
		CreatedAt  time.Time       `json:"createdAt"`
		UpdatedAt  *time.Time      `json:"updatedAt,omitempty"`
	}
)

var (
	ErrInvalidDate = errors.New("invalid date")
	ErrEmptyID     = errors.New("empty record id")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// FormatBR renders the date the way the dashboard shows it (dd/mm/yyyy).
func (d Date) FormatBR() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps too, keeping only the calendar part.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the invariants every stored record must hold.
func (r PurchaseRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(r.Fornecedor) == "" {
		return fieldError(FieldFornecedor)
	}
	if r.Categoria == "" {
		return fieldError(FieldCategoria)
	}
	if strings.TrimSpace(r.Base) == "" {
		return fieldError(FieldBase)
	}
	if !r.Valor.IsPositive() {
		return fieldError(FieldValor)
	}
	if r.Vencimento.IsEmpty() {
		return fieldError(FieldVencimento)
	}
	return nil
}

func fieldError(field string) error {
	return &ValidationError{Fields: []string{field}}
}
