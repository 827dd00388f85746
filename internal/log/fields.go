package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldOperation = "operation"
	FieldRecordID  = "record_id"
	FieldBase      = "base"
	FieldCategoria = "categoria"
	FieldValor     = "valor"
	FieldFields    = "fields"
)

// Component names
const (
	ComponentHTTP   = "http"
	ComponentRecord = "record"
	ComponentWorker = "worker"
)

// Record operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LogFields collects attributes before handing them to slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRecord adds the identifying fields of a purchase record.
func (f LogFields) WithRecord(id, base, categoria, valor string) LogFields {
	f[FieldRecordID] = id
	f[FieldBase] = base
	f[FieldCategoria] = categoria
	f[FieldValor] = valor
	return f
}

// ToSlice converts LogFields to slog arguments, sorted by key.
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
