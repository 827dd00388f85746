package http

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "gestao/internal/log"
	"gestao/internal/middleware/ratelimit"
	"gestao/internal/middleware/security"
	"gestao/internal/middleware/trace"
	"gestao/internal/services"
	appweb "gestao/web"
)

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	RateLimitPerMinute int
	// BackendName and Remote are reported by /readyz and the dashboard.
	BackendName string
	Remote      bool
	Logger      *applog.Logger
}

// Server serves the dashboard and the records API.
type Server struct {
	http.Server
	templates *template.Template
	svc       *services.RecordService
	opts      Options

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, svc *services.RecordService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.Config{
			Component: applog.ComponentHTTP,
			Handler:   slog.Default().Handler(),
		})
	}

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		svc:       svc,
		opts:      opts,
		detector:  security.NewDetector(),
		startedAt: time.Now(),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: opts.RateLimitPerMinute,
		Methods:           ratelimit.MutatingMethods,
	})
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	t, err := appweb.Templates()
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/records/{id}", s.handleRecord)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/meta", s.handleMeta)
	mux.HandleFunc("/api/reload", s.handleReload)

	s.Handler = s.chain(mux)
	return s
}

// chain wraps h so requests flow through tracing, security headers,
// detection and rate limiting before reaching the mux.
func (s *Server) chain(h http.Handler) http.Handler {
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(s.opts.Logger)(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.tracer.Middleware(h)
}

// Shutdown gracefully shuts down the server and the limiter's cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
