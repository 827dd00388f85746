package security

import (
	"net/http"
	"strconv"
)

// HeadersConfig lists the response headers sent on every request. Empty
// fields are not sent.
type HeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeOptions    string
	ReferrerPolicy        string
	PermissionsPolicy     string
	OpenerPolicy          string
	ResourcePolicy        string

	// Strict-Transport-Security, sent only on TLS requests.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
}

// DefaultHeadersConfig locks the dashboard to its own origin: it loads only
// its own script and stylesheet.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self'; " +
			"img-src 'self' data:; connect-src 'self'; object-src 'none'; " +
			"frame-ancestors 'none'; base-uri 'self'; form-action 'self'",
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		ReferrerPolicy:     "same-origin",
		PermissionsPolicy:  "camera=(), microphone=(), geolocation=(), payment=()",
		OpenerPolicy:       "same-origin",
		ResourcePolicy:     "same-origin",

		HSTSMaxAge:            365 * 24 * 60 * 60,
		HSTSIncludeSubdomains: true,
	}
}

// HeadersMiddleware stamps a fixed set of security headers on responses.
type HeadersMiddleware struct {
	static http.Header
	hsts   string
}

// NewHeadersMiddleware renders cfg into header values once.
func NewHeadersMiddleware(cfg HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{static: make(http.Header)}
	for name, value := range map[string]string{
		"Content-Security-Policy":      cfg.ContentSecurityPolicy,
		"X-Frame-Options":              cfg.FrameOptions,
		"X-Content-Type-Options":       cfg.ContentTypeOptions,
		"Referrer-Policy":              cfg.ReferrerPolicy,
		"Permissions-Policy":           cfg.PermissionsPolicy,
		"Cross-Origin-Opener-Policy":   cfg.OpenerPolicy,
		"Cross-Origin-Resource-Policy": cfg.ResourcePolicy,
	} {
		if value != "" {
			h.static.Set(name, value)
		}
	}

	if cfg.HSTSMaxAge > 0 {
		h.hsts = "max-age=" + strconv.Itoa(cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
		if cfg.HSTSPreload {
			h.hsts += "; preload"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for name := range h.static {
			out.Set(name, h.static.Get(name))
		}
		if r.TLS != nil && h.hsts != "" {
			out.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache embedded assets for maxAge
// seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
