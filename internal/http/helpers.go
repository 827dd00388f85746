package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"gestao/internal/core"
	"gestao/internal/ports"
	"gestao/internal/services"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// errorResponse maps a service error to its response.
func errorResponse(r *http.Request, err error) *ResponseBuilder {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return ValidationFailedError(verr.Fields)
	case errors.Is(err, core.ErrInvalidRecord):
		return ValidationFailedError(nil)
	case errors.Is(err, ports.ErrNotFound):
		return NotFoundError("Registro não encontrado")
	case errors.Is(err, services.ErrBackend):
		slog.ErrorContext(r.Context(), "Backend failure", "error", err, "path", r.URL.Path)
		return BackendError("Falha ao acessar o armazenamento")
	default:
		slog.ErrorContext(r.Context(), "Unexpected error", "error", err, "path", r.URL.Path)
		return InternalServerError("Erro interno")
	}
}

const (
	missingDescription = "Sem descrição analítica"
	missingValue       = "---"
)

// orPlaceholder returns s, or the placeholder when s is blank.
func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
