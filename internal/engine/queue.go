package engine

import "sync"

// transition asks the run loop to execute a stage.
type transition struct {
	next State
}

// transitionQueue is a thread-safe FIFO of transitions for one run.
//
// The run loop is the only consumer. Producers are the loop itself (the
// state a stage returned) and external continuations such as the
// workspace's reinitialization callback.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the run loop.
type transitionQueue struct {
	mu     sync.Mutex
	items  []transition
	closed bool
	signal chan struct{} // buffered, size 1
}

func newTransitionQueue() *transitionQueue {
	return &transitionQueue{
		items:  make([]transition, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a transition to the back of the queue.
// Returns false if the queue is closed.
func (q *transitionQueue) Enqueue(t transition) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, t)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front transition without blocking.
func (q *transitionQueue) TryDequeue() (transition, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return transition{}, false
	}
	t := q.items[0]
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return t, true
}

// Wait returns a channel that signals when transitions may be available.
// It is closed by Close.
func (q *transitionQueue) Wait() <-chan struct{} {
	return q.signal
}

// Close rejects further transitions, so a continuation that fires after
// the run ended is dropped.
func (q *transitionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
