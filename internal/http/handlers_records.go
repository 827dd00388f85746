package http

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"gestao/internal/core"
	applog "gestao/internal/log"
)

// exportFilename is the attachment name of the audit export.
const exportFilename = "wfs_gestao_audit.json"

// handleRecords lists records (GET) or creates one (POST).
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		records := s.svc.Records()
		if records == nil {
			records = []core.PurchaseRecord{}
		}
		NewResponse().JSON(records).Write(w)
	case http.MethodPost:
		s.createRecord(w, r)
	default:
		MethodNotAllowedError("GET, HEAD, POST").Write(w)
	}
}

// handleRecord reads, replaces or deletes the record named in the path.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		NotFoundError("Registro não encontrado").Write(w)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		rec, err := s.svc.Get(id)
		if err != nil {
			errorResponse(r, err).Write(w)
			return
		}
		NewResponse().JSON(rec).Write(w)
	case http.MethodPut:
		s.updateRecord(w, r, id)
	case http.MethodDelete:
		if err := s.svc.Delete(r.Context(), id); err != nil {
			errorResponse(r, err).Write(w)
			return
		}
		applog.RecordLogger(r.Context()).LogRecordDeleted(r.Context(), id)
		NewResponse().Status(http.StatusNoContent).Write(w)
	default:
		MethodNotAllowedError("GET, HEAD, PUT, DELETE").Write(w)
	}
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	payload, err := parser.RecordPayload()
	if err != nil {
		BadRequestError("Formato da requisição inválido").Write(w)
		return
	}

	rec, err := s.svc.Create(r.Context(), payload)
	if err != nil {
		s.rejected(r, applog.OpCreate, err)
		errorResponse(r, err).Write(w)
		return
	}
	applog.RecordLogger(r.Context()).LogRecordChanged(r.Context(), applog.OpCreate, rec)

	// A plain HTML form submission goes back to the dashboard.
	if !parser.IsJSON() && acceptsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	NewResponse().Status(http.StatusCreated).
		Header("Location", "/api/records/"+rec.ID).
		JSON(rec).
		Write(w)
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request, id string) {
	payload, err := NewRequestBodyParser(r).RecordPayload()
	if err != nil {
		BadRequestError("Formato da requisição inválido").Write(w)
		return
	}

	rec, err := s.svc.Update(r.Context(), id, payload)
	if err != nil {
		s.rejected(r, applog.OpUpdate, err)
		errorResponse(r, err).Write(w)
		return
	}
	applog.RecordLogger(r.Context()).LogRecordChanged(r.Context(), applog.OpUpdate, rec)
	NewResponse().JSON(rec).Write(w)
}

// rejected logs gate failures. Other errors are logged by errorResponse.
func (s *Server) rejected(r *http.Request, op string, err error) {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		applog.RecordLogger(r.Context()).LogRejected(r.Context(), op, verr.Fields)
	}
}

// handleSummary returns the aggregation of the working set.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	NewResponse().JSON(s.svc.Overview()).Write(w)
}

// handleExport downloads the working set as a JSON attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Export(&buf); err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleMeta describes the choices the form offers.
func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	NewResponse().JSON(map[string]any{
		"bases":      core.KnownBases,
		"categories": s.svc.Categories(),
		"currency":   "BRL",
		"locale":     "pt-BR",
		"backend":    s.opts.BackendName,
		"remote":     s.opts.Remote,
	}).Write(w)
}

// handleReload re-lists every record from the backend.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	n, err := s.svc.Load(r.Context())
	if err != nil {
		errorResponse(r, err).Write(w)
		return
	}
	NewResponse().JSON(map[string]int{"count": n}).Write(w)
}

func acceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
