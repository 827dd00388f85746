// Package security provides response hardening headers, client IP
// extraction behind trusted proxies and logging of suspicious requests.
package security

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// DetectionMetrics counts flagged requests.
type DetectionMetrics struct {
	SuspiciousRequests int64
}

// probeMarkers show up in the path or query of vulnerability scans.
var probeMarkers = []string{
	"../", "..\\", ".env", ".git", ".ssh", "etc/passwd", "cmd.exe",
	"wp-admin", "phpmyadmin", "admin.php", "config.php",
	"<script", "javascript:", "eval(", "union select",
}

var scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}

var unusualMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}

const (
	maxURLLength = 2048
	maxProxyHops = 5
)

// defaultTrustedProxies are loopback and the private ranges.
var defaultTrustedProxies = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
}

// Detector flags probe-like requests and resolves client addresses.
type Detector struct {
	suspicious atomic.Int64
	trusted    []netip.Prefix
}

// NewDetector trusts loopback, the private ranges and extra as reverse
// proxies.
func NewDetector(extra ...netip.Prefix) *Detector {
	return &Detector{trusted: append(append([]netip.Prefix(nil), defaultTrustedProxies...), extra...)}
}

// Inspect returns why r looks like a probe, or "" when it does not.
func (d *Detector) Inspect(r *http.Request) string {
	reason := inspect(r)
	if reason != "" {
		d.suspicious.Add(1)
	}
	return reason
}

func inspect(r *http.Request) string {
	switch {
	case unusualMethods[r.Method]:
		return "method"
	case len(r.URL.String()) > maxURLLength:
		return "url_length"
	case containsAny(strings.ToLower(r.URL.Path), probeMarkers):
		return "path"
	case containsAny(strings.ToLower(r.URL.RawQuery), probeMarkers):
		return "query"
	case containsAny(strings.ToLower(r.UserAgent()), scannerAgents):
		return "user_agent"
	case strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxProxyHops:
		return "proxy_chain"
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Middleware logs suspicious requests. It never blocks them.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Inspect(r); reason != "" {
			slog.WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				"client_ip", d.ExtractClientIP(r),
				"method", r.Method,
				"path", r.URL.Path,
				"user_agent", r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the client address. X-Forwarded-For and X-Real-IP
// are honoured only when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !d.isTrusted(addr.Unmap()) {
		return peer
	}

	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		candidate = strings.TrimSpace(candidate)
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate
		}
	}
	return peer
}

func (d *Detector) isTrusted(addr netip.Addr) bool {
	for _, p := range d.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{SuspiciousRequests: d.suspicious.Load()}
}
