// Package ratelimit throttles clients with one token bucket per client IP.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerMinute is both the sustained rate and the burst a fresh
	// client may spend at once.
	RequestsPerMinute int
	// IdleTimeout drops a client's bucket after this long without requests.
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	// Methods limits which request methods are counted. Empty means all.
	Methods []string
}

// MutatingMethods are the methods that change records.
var MutatingMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

const (
	defaultRequestsPerMinute = 60
	defaultIdleTimeout       = 10 * time.Minute
	defaultCleanupInterval   = 5 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps a token bucket per client. Call Stop to end its cleanup
// loop.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idle    time.Duration
	methods map[string]bool
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	rejected atomic.Int64
	stop     chan struct{}
	stopOnce sync.Once
}

func NewLimiter(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultRequestsPerMinute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}

	l := &Limiter{
		limit:   rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute)),
		burst:   cfg.RequestsPerMinute,
		idle:    cfg.IdleTimeout,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if len(cfg.Methods) > 0 {
		l.methods = make(map[string]bool, len(cfg.Methods))
		for _, m := range cfg.Methods {
			l.methods[m] = true
		}
	}
	go l.cleanupLoop(cfg.CleanupInterval)
	return l
}

// Reserve takes a token for client. When none is available it returns false
// and how long until one is.
func (l *Limiter) Reserve(client string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[client] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		l.rejected.Add(1)
		return false, delay
	}
	return true, 0
}

// Allow is Reserve without the wait hint.
func (l *Limiter) Allow(client string) bool {
	ok, _ := l.Reserve(client)
	return ok
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.dropIdle(); n > 0 {
				slog.Debug("Rate limiter dropped idle clients", "removed", n)
			}
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) dropIdle() int {
	cutoff := l.now().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for client, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, client)
			removed++
		}
	}
	return removed
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Metrics is a snapshot for /metrics.
type Metrics struct {
	Rejected int64
	Clients  int
}

func (l *Limiter) GetMetrics() Metrics {
	l.mu.Lock()
	clients := len(l.buckets)
	l.mu.Unlock()
	return Metrics{Rejected: l.rejected.Load(), Clients: clients}
}

// Middleware limits requests per client IP. onLimit writes the rejection
// after Retry-After is set.
func (l *Limiter) Middleware(clientIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.methods != nil && !l.methods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			ok, wait := l.Reserve(ip)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", ip,
				"method", r.Method,
				"path", r.URL.Path,
				"retry_after", wait)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
}
