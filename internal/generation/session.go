package generation

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type activeRun struct {
	runID  uuid.UUID
	cancel context.CancelFunc
}

// sessionRegistry enforces one active generation per session: beginning a new
// run cancels whatever run the session still has in flight.
type sessionRegistry struct {
	mu     sync.Mutex
	active map[uuid.UUID]*activeRun
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{active: make(map[uuid.UUID]*activeRun)}
}

// Begin registers a new run for the session, cancelling any prior run first,
// and returns a context cancelled on supersession or explicit stop.
func (r *sessionRegistry) Begin(parent context.Context, session uuid.UUID) (context.Context, uuid.UUID) {
	ctx, cancel := context.WithCancel(parent)
	runID := uuid.New()

	r.mu.Lock()
	prior := r.active[session]
	r.active[session] = &activeRun{runID: runID, cancel: cancel}
	r.mu.Unlock()

	if prior != nil {
		prior.cancel()
	}
	return ctx, runID
}

// End tears the run down if it is still the session's current one. A run that
// was superseded must not cancel its successor.
func (r *sessionRegistry) End(session, runID uuid.UUID) {
	r.mu.Lock()
	cur := r.active[session]
	if cur != nil && cur.runID == runID {
		delete(r.active, session)
	} else {
		cur = nil
	}
	r.mu.Unlock()

	if cur != nil {
		cur.cancel()
	}
}

// Stop cancels the session's active run. Returns false when nothing was running.
func (r *sessionRegistry) Stop(session uuid.UUID) bool {
	r.mu.Lock()
	cur := r.active[session]
	if cur != nil {
		delete(r.active, session)
	}
	r.mu.Unlock()

	if cur == nil {
		return false
	}
	cur.cancel()
	return true
}

// IsCurrent reports whether the run still owns the session slot.
func (r *sessionRegistry) IsCurrent(session, runID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.active[session]
	return cur != nil && cur.runID == runID
}
