// Package cache holds the in-process caches of the mirror worker and the
// manager that expires them in the background.
package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Clear()
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)

// Managed is what the Manager needs from a cache.
type Managed interface {
	CleanExpired() int
	Stats() Stats
}

// Manager expires registered caches periodically and reports their stats.
type Manager struct {
	mu      sync.Mutex
	caches  map[string]Managed
	stop    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func NewManager() *Manager {
	return &Manager{caches: make(map[string]Managed)}
}

// Register adds a cache under name. Registering a name again replaces it.
func (m *Manager) Register(name string, c Managed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// StartCleanup runs CleanNow every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(interval, m.stop, m.done)
}

func (m *Manager) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if cleaned := m.CleanNow(); cleaned > 0 {
				slog.Debug("Expired cache entries removed", "component", "cache", "count", cleaned)
			}
		case <-stop:
			return
		}
	}
}

// CleanNow runs one cleanup pass over every registered cache.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stats returns the stats of every registered cache, keyed by name.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Stats, len(m.caches))
	for name, c := range m.caches {
		out[name] = c.Stats()
	}
	return out
}

// LogStats writes one line per cache, in name order.
func (m *Manager) LogStats(logger *slog.Logger) {
	stats := m.Stats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := stats[name]
		logger.Info("Cache stats",
			"cache", name,
			"size", s.Size,
			"hits", s.Hits,
			"misses", s.Misses,
			"evictions", s.Evictions)
	}
}

// Stop ends the cleanup loop and waits for it. Safe to call more than once
// or without StartCleanup.
func (m *Manager) Stop() {
	m.stopped.Do(func() {
		m.mu.Lock()
		stop, done := m.stop, m.done
		m.mu.Unlock()
		if stop != nil {
			close(stop)
			<-done
		}
	})
}
