package http

import (
	"bytes"
	"log/slog"
	"net/http"

	"gestao/internal/core"
)

type (
	// dashboardData is everything index.html renders. Amounts are
	// preformatted as BRL.
	dashboardData struct {
		TotalGeral string
		Count      int
		Summaries  []summaryCard
		Rows       []recordRow
		Bases      []string
		Categories []core.Category
		Backend    string
		Remote     bool
	}

	summaryCard struct {
		Base  string
		Total string
		Count int
	}

	recordRow struct {
		ID         string
		Vencimento string
		Base       string
		Fornecedor string
		Descricao  string
		Documento  string
		Pedido     string
		Categoria  string
		// CategoryClass picks the badge colour.
		CategoryClass string
		Valor         string
	}
)

// handleIndex renders the dashboard. Every other unmatched path is a 404.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Recurso não encontrado").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", s.dashboard()); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err, "template", "index.html")
		InternalServerError("Falha ao renderizar o painel").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) dashboard() dashboardData {
	records := s.svc.Records()
	overview := core.Aggregate(records)

	data := dashboardData{
		TotalGeral: core.FormatBRL(overview.TotalGeral),
		Count:      overview.Count,
		Summaries:  make([]summaryCard, 0, len(overview.Summaries)),
		Rows:       make([]recordRow, 0, len(records)),
		Bases:      core.KnownBases,
		Categories: s.svc.Categories(),
		Backend:    s.opts.BackendName,
		Remote:     s.opts.Remote,
	}
	for _, sum := range overview.Summaries {
		data.Summaries = append(data.Summaries, summaryCard{
			Base:  sum.Base,
			Total: core.FormatBRL(sum.Total),
			Count: sum.Count,
		})
	}
	for _, rec := range records {
		data.Rows = append(data.Rows, newRecordRow(rec))
	}
	return data
}

func newRecordRow(rec core.PurchaseRecord) recordRow {
	venc := missingValue
	if !rec.Vencimento.IsEmpty() {
		venc = rec.Vencimento.FormatBR()
	}
	return recordRow{
		ID:            rec.ID,
		Vencimento:    venc,
		Base:          rec.Base,
		Fornecedor:    rec.Fornecedor,
		Descricao:     orPlaceholder(rec.Descricao, missingDescription),
		Documento:     orPlaceholder(rec.Documento, missingValue),
		Pedido:        orPlaceholder(rec.Pedido, missingValue),
		Categoria:     string(rec.Categoria),
		CategoryClass: categoryClass(rec.Categoria),
		Valor:         core.FormatBRL(rec.Valor),
	}
}

func categoryClass(c core.Category) string {
	switch c {
	case core.Locacao:
		return "badge--locacao"
	case core.Material:
		return "badge--material"
	case core.Servico:
		return "badge--servico"
	case core.HoraExtra:
		return "badge--hora-extra"
	default:
		return "badge--other"
	}
}
