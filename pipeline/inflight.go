package pipeline

import "sync"

// inflightRegistry guarantees at-most-one pipeline run per job id inside
// this process. Every trigger source funnels through Acquire before a run
// is dispatched, so the guarantee holds for the sweep and manual triggers
// alike.
type inflightRegistry struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newInflightRegistry() *inflightRegistry {
	return &inflightRegistry{running: make(map[string]struct{})}
}

// Acquire claims the job id. It returns false when a run is already in
// flight; force does not bypass this, it only relaxes the persisted
// planning-status guard.
func (r *inflightRegistry) Acquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[id]; ok {
		return false
	}
	r.running[id] = struct{}{}
	return true
}

func (r *inflightRegistry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, id)
}

func (r *inflightRegistry) InFlight(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[id]
	return ok
}
