// Package sessions tracks the live relay sessions of one process for
// introspection, broadcast, and drain coordination.
package sessions

import (
	"context"
	"sync"
)

// Handle is the small control surface a session exposes to the registry.
type Handle struct {
	SubjectID string
	Cancel    func()
	Warn      func(message string)
}

type Registry struct {
	mu      sync.Mutex
	entries map[string]*registeredSession
	wg      sync.WaitGroup
}

type registeredSession struct {
	handle Handle
	once   sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registeredSession),
	}
}

// Register tracks one session until the returned unregister func runs.
// Re-registering a session id evicts the previous entry.
func (r *Registry) Register(sessionID string, h Handle) (unregister func()) {
	if r == nil {
		return func() {}
	}

	entry := &registeredSession{handle: h}

	r.mu.Lock()
	if r.entries == nil {
		r.entries = make(map[string]*registeredSession)
	}
	old := r.entries[sessionID]
	r.entries[sessionID] = entry
	r.wg.Add(1)
	r.mu.Unlock()

	if old != nil {
		r.unregister(sessionID, old)
	}

	return func() { r.unregister(sessionID, entry) }
}

func (r *Registry) unregister(sessionID string, entry *registeredSession) {
	if r == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		r.mu.Lock()
		if r.entries != nil && r.entries[sessionID] == entry {
			delete(r.entries, sessionID)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Broadcast delivers a warning to every live session, best effort.
func (r *Registry) Broadcast(message string) (sent int) {
	if r == nil {
		return 0
	}

	var warns []func(string)
	r.mu.Lock()
	for _, entry := range r.entries {
		if entry == nil || entry.handle.Warn == nil {
			continue
		}
		warns = append(warns, entry.handle.Warn)
	}
	r.mu.Unlock()

	for _, warn := range warns {
		warn(message)
		sent++
	}
	return sent
}

// CancelAll tells every live session to drain.
func (r *Registry) CancelAll() (canceled int) {
	if r == nil {
		return 0
	}

	var cancels []func()
	r.mu.Lock()
	for _, entry := range r.entries {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every registered session has unregistered, or the
// context expires. It reports whether the registry fully drained.
func (r *Registry) Wait(ctx context.Context) bool {
	if r == nil {
		return true
	}
	if ctx == nil {
		r.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
