package engine

import (
	"sync"

	"github.com/roach88/factsync/internal/ir"
)

// factQueue is a thread-safe FIFO of newly arrived fact references.
//
// The queue is unbounded so a replicator delivering a burst of facts never
// blocks on a slow observer.
//
// Producers (feeds, CLI replays) may enqueue from any goroutine while the
// Observer's Run loop dequeues.
//
// A buffered signal channel lets the Run loop wait with select, so context
// cancellation is never missed.
type factQueue struct {
	mu     sync.Mutex
	refs   []ir.FactReference
	closed bool
	signal chan struct{} // buffered, size 1
}

func newFactQueue() *factQueue {
	return &factQueue{
		refs:   make([]ir.FactReference, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds ref to the back of the queue.
// Returns false if the queue is closed.
func (q *factQueue) Enqueue(ref ir.FactReference) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.refs = append(q.refs, ref)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front reference without blocking.
func (q *factQueue) TryDequeue() (ir.FactReference, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.refs) == 0 {
		return ir.FactReference{}, false
	}
	ref := q.refs[0]
	q.refs[0] = ir.FactReference{}
	if len(q.refs) == 1 {
		q.refs = q.refs[:0]
	} else {
		q.refs = q.refs[1:]
	}
	return ref, true
}

// Wait returns a channel that signals when references may be available.
// It is closed once the queue is closed.
func (q *factQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *factQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.refs)
}

// Drained reports whether the queue is closed and empty.
func (q *factQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.refs) == 0
}

// Close stops further enqueues and wakes any waiter.
func (q *factQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
