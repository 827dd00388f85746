// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// The dashboard posts form-encoded bodies while API clients send JSON; both
// end up as a core.RecordPayload.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gestao/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a body exceeds maxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = ErrBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(trimmed, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// GetExact returns a value without trimming or input sanitization.
func (p *RequestBodyParser) GetExact(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// RecordPayload builds the submission payload from the parsed body.
//
// JSON bodies decode straight into core.RecordPayload so a numeric valor is
// taken as is and a string valor goes through the amount sanitizer. Form
// values are always strings and are always sanitized. Base is passed through
// exactly as sent.
func (p *RequestBodyParser) RecordPayload() (core.RecordPayload, error) {
	if err := p.Parse(); err != nil {
		return core.RecordPayload{}, err
	}

	var payload core.RecordPayload
	if p.IsJSON() {
		if err := json.Unmarshal(bytes.TrimSpace(p.body), &payload); err != nil {
			return core.RecordPayload{}, err
		}
		payload.Fornecedor = sanitizeInput(payload.Fornecedor)
		payload.Documento = sanitizeInput(payload.Documento)
		payload.Descricao = sanitizeInput(payload.Descricao)
		payload.Categoria = core.Category(sanitizeInput(string(payload.Categoria)))
		return payload, nil
	}

	return core.RecordPayload{
		Fornecedor: p.Get(core.FieldFornecedor),
		Categoria:  core.Category(p.Get(core.FieldCategoria)),
		Base:       p.GetExact(core.FieldBase),
		Documento:  p.Get("documento"),
		Descricao:  p.Get("descricao"),
		Pedido:     p.Get("pedido"),
		Valor:      core.AmountInput(core.SanitizeAmountInput(p.Get(core.FieldValor))),
		Vencimento: p.Get(core.FieldVencimento),
	}, nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod checks if the request method matches the expected method(s).
// Returns an error response builder if the method doesn't match.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET is a convenience function for read-only handlers. HEAD is
// accepted too.
func RequireGET(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}
