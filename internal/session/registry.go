package session

import (
	"errors"
	"sync"
	"time"
)

// ErrFull is returned by Reserve when the registry is at capacity.
var ErrFull = errors.New("too many sessions")

// Registry tracks live transport sessions up to a fixed capacity. New
// sessions over capacity are rejected; existing ones are never evicted to
// make room. Sessions idle for longer than the idle timeout are expired.
type Registry struct {
	mu       sync.Mutex
	capacity int
	idle     time.Duration
	now      func() time.Time
	pending  int
	lastSeen map[string]time.Time
}

// NewRegistry creates a registry admitting at most capacity sessions. An
// idle timeout of zero disables expiry.
func NewRegistry(capacity int, idle time.Duration) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{
		capacity: capacity,
		idle:     idle,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

// Reserve claims a slot for a session that is being established. The slot
// must be settled with Commit or Cancel.
func (r *Registry) Reserve() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	if len(r.lastSeen)+r.pending >= r.capacity {
		return ErrFull
	}
	r.pending++
	return nil
}

// Commit turns a reserved slot into the session id. An empty id cancels the
// reservation.
func (r *Registry) Commit(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending > 0 {
		r.pending--
	}
	if id != "" {
		r.lastSeen[id] = r.now()
	}
}

// Cancel releases a reserved slot that never became a session.
func (r *Registry) Cancel() {
	r.Commit("")
}

// Touch marks id as active and reports whether it is registered. A session
// idle past the timeout is released instead and reported as unknown.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen, ok := r.lastSeen[id]
	if !ok {
		return false
	}
	now := r.now()
	if r.idle > 0 && now.Sub(seen) > r.idle {
		delete(r.lastSeen, id)
		return false
	}
	r.lastSeen[id] = now
	return true
}

// IdleTimeout returns the idle timeout; zero means sessions never expire.
func (r *Registry) IdleTimeout() time.Duration {
	return r.idle
}

// Release forgets id.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastSeen, id)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLocked()
	return len(r.lastSeen)
}

func (r *Registry) expireLocked() {
	if r.idle <= 0 {
		return
	}
	cutoff := r.now().Add(-r.idle)
	for id, seen := range r.lastSeen {
		if seen.Before(cutoff) {
			delete(r.lastSeen, id)
		}
	}
}
