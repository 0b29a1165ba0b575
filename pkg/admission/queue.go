package admission

import (
	"errors"
	"sync"
)

// ErrCancelled is delivered to a waiter removed by RunID before it was
// admitted.
var ErrCancelled = errors.New("admission: waiter cancelled")

// ErrSessionEnded is delivered to every waiter of a session torn down
// before admission.
var ErrSessionEnded = errors.New("admission: session ended")

// Result is delivered to a waiter's channel exactly once: either admitted,
// or rejected with an error.
type Result struct {
	Admitted bool
	Err      error
}

type waiter struct {
	sessionID string
	runID     string
	modelKey  string
	seq       uint64
	resultCh  chan Result
}

// Queue parks admission waiters keyed by requester session id.
type Queue struct {
	mu        sync.Mutex
	bySession map[string][]*waiter
	seq       uint64
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{bySession: make(map[string][]*waiter)}
}

// Enqueue parks a waiter for runId under sessionId, blocked on modelKey.
// The returned channel receives exactly one Result.
func (q *Queue) Enqueue(sessionID, runID, modelKey string) <-chan Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	w := &waiter{
		sessionID: sessionID,
		runID:     runID,
		modelKey:  modelKey,
		seq:       q.seq,
		resultCh:  make(chan Result, 1),
	}
	q.seq++

	q.bySession[sessionID] = append(q.bySession[sessionID], w)
	return w.resultCh
}

// CancelByRunID removes a still-queued waiter and rejects it with
// ErrCancelled. Returns false if no matching waiter was found (it may
// already have been admitted).
func (q *Queue) CancelByRunID(sessionID, runID string) bool {
	q.mu.Lock()
	removed := q.removeLocked(sessionID, runID)
	q.mu.Unlock()

	if removed == nil {
		return false
	}
	removed.resultCh <- Result{Err: ErrCancelled}
	return true
}

// TeardownSession removes and rejects every waiter queued under sessionId.
func (q *Queue) TeardownSession(sessionID string) {
	q.mu.Lock()
	waiters := q.bySession[sessionID]
	delete(q.bySession, sessionID)
	q.mu.Unlock()

	for _, w := range waiters {
		w.resultCh <- Result{Err: ErrSessionEnded}
	}
}

// removeLocked removes and returns the waiter matching (sessionID, runID),
// or nil if absent. Must be called with q.mu held.
func (q *Queue) removeLocked(sessionID, runID string) *waiter {
	waiters := q.bySession[sessionID]
	for i, w := range waiters {
		if w.runID == runID {
			q.bySession[sessionID] = append(waiters[:i], waiters[i+1:]...)
			return w
		}
	}
	return nil
}

// Release scans once for the oldest waiter (across all sessions) whose
// (sessionId, modelKey) pair is not occupied per isOccupied, and wakes it.
// At most one waiter is admitted per call, to avoid a thundering herd;
// repeated releases wake further waiters. The wake is dispatched on its own
// goroutine so the caller's lock is never held across the waiter's
// continuation.
func (q *Queue) Release(isOccupied func(sessionID, modelKey string) bool) {
	q.mu.Lock()

	var (
		best     *waiter
		bestSess string
	)
	for sessionID, waiters := range q.bySession {
		for _, w := range waiters {
			if isOccupied(sessionID, w.modelKey) {
				continue
			}
			if best == nil || w.seq < best.seq {
				best = w
				bestSess = sessionID
			}
		}
	}

	if best != nil {
		q.removeLocked(bestSess, best.runID)
	}
	q.mu.Unlock()

	if best == nil {
		return
	}
	go func() { best.resultCh <- Result{Admitted: true} }()
}

// Len returns the total number of waiters currently queued, across all
// sessions. Intended for tests and diagnostics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, waiters := range q.bySession {
		n += len(waiters)
	}
	return n
}
