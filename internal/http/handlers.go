package http

import (
	"context"
	"net/http"
	"runtime"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports ready once templates are parsed and the working set
// has been loaded from the backend at least once.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.svc.Loaded() {
		checks["records"] = "ok"
	} else {
		checks["records"] = "not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		checks["backend"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"backend":   s.opts.BackendName,
		"remote":    s.opts.Remote,
		"checks":    checks,
	}).Write(w)
}

// handleMetrics exposes request, rate limit and security counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	traceMetrics := s.tracer.Metrics()
	limitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	NewResponse().JSON(map[string]any{
		"timestamp":      time.Now().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"requests": map[string]int64{
			"total":              traceMetrics.Total,
			"client_errors":      traceMetrics.ClientErrors,
			"server_errors":      traceMetrics.ServerErrors,
			"last_latency_us":    traceMetrics.LastLatency.Microseconds(),
			"rate_limited":       limitMetrics.Rejected,
			"rate_limit_clients": int64(limitMetrics.Clients),
			"suspicious":         securityMetrics.SuspiciousRequests,
		},
		"records": map[string]any{
			"count":  len(s.svc.Records()),
			"loaded": s.svc.Loaded(),
		},
		"memory": map[string]any{
			"alloc_bytes": mem.Alloc,
			"sys_bytes":   mem.Sys,
			"num_gc":      mem.NumGC,
			"goroutines":  runtime.NumGoroutine(),
		},
	}).Write(w)
}
