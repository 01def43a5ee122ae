package watcher

import (
	"sync"
	"time"
)

type record struct {
	at      time.Time
	pending bool // claimed, readiness wait still running
}

// recentFiles remembers paths accepted within the dedup window.
// Safe for concurrent use by create handlers and the sweeper.
type recentFiles struct {
	mu      sync.Mutex
	window  time.Duration
	records map[string]record
}

func newRecentFiles(window time.Duration) *recentFiles {
	return &recentFiles{window: window, records: make(map[string]record)}
}

// claim reserves path for one handler. It returns false while another
// handler holds the path or the path was accepted less than window ago.
// An expired record is replaced.
func (r *recentFiles) claim(path string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[path]; ok {
		if rec.pending || now.Sub(rec.at) < r.window {
			return false
		}
	}
	r.records[path] = record{at: now, pending: true}
	return true
}

// commit marks a claimed path as accepted at now.
func (r *recentFiles) commit(path string, now time.Time) {
	r.mu.Lock()
	r.records[path] = record{at: now}
	r.mu.Unlock()
}

// release drops a claim that did not lead to an event.
func (r *recentFiles) release(path string) {
	r.mu.Lock()
	delete(r.records, path)
	r.mu.Unlock()
}

// sweep removes committed records older than the window or whose file is gone.
// Returns the number removed.
func (r *recentFiles) sweep(now time.Time, exists func(string) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for path, rec := range r.records {
		if rec.pending {
			continue
		}
		if now.Sub(rec.at) >= r.window || !exists(path) {
			delete(r.records, path)
			removed++
		}
	}
	return removed
}

func (r *recentFiles) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
