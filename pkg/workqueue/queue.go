// Package workqueue provides the two synchronization primitives shared by the
// purge pipeline: an unbounded FIFO of item identifiers with outstanding-work
// accounting, and a one-shot readiness gate.
package workqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push on a sealed queue, and by Pop once the queue
// is sealed and holds no more items.
var ErrClosed = errors.New("workqueue: closed")

// Stats is a point-in-time snapshot of the queue counters.
type Stats struct {
	Pushed    int
	Completed int
	Discarded int
	Pending   int
	InFlight  int
}

// Outstanding returns pushed items that were neither completed nor discarded.
func (s Stats) Outstanding() int {
	return s.Pending + s.InFlight
}

// Queue is an unbounded FIFO of item identifiers.
//
// Every pushed item is counted as outstanding until a consumer that popped it
// calls Done, or until Abort discards it unpopped. Wait blocks until the
// outstanding count reaches zero.
type Queue struct {
	mu        sync.Mutex
	items     []string
	inFlight  int
	pushed    int
	completed int
	discarded int
	closed    bool

	// changed is closed and replaced on every state transition so that all
	// blocked Pop and Wait callers re-check the queue.
	changed chan struct{}
	sealed  chan struct{}
}

// New creates an empty, open queue.
func New() *Queue {
	return &Queue{
		changed: make(chan struct{}),
		sealed:  make(chan struct{}),
	}
}

// broadcast wakes every waiter. Must be called with q.mu held.
func (q *Queue) broadcast() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Push appends an identifier to the tail of the queue.
func (q *Queue) Push(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.items = append(q.items, id)
	q.pushed++
	q.broadcast()
	return nil
}

// Pop removes the head of the queue. It blocks while the queue is empty and
// open, and returns ErrClosed once the queue is sealed and empty. A popped
// item stays outstanding until Done is called for it.
func (q *Queue) Pop(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			q.inFlight++
			q.mu.Unlock()
			return id, nil
		}
		if q.closed {
			q.mu.Unlock()
			return "", ErrClosed
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Done marks one popped item as finished. It panics when called more times
// than Pop returned an item, like sync.WaitGroup does on a negative counter.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == 0 {
		panic("workqueue: Done called without a matching Pop")
	}
	q.inFlight--
	q.completed++
	q.broadcast()
}

// Close seals the queue: further Push calls fail, pending items can still be
// popped. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

func (q *Queue) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	close(q.sealed)
	q.broadcast()
}

// Abort seals the queue and discards every pending item. In-flight items are
// untouched and still need Done. It returns the number of discarded items.
func (q *Queue) Abort() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.discarded += n
	q.closeLocked()
	return n
}

// Closed returns a channel that is closed once the queue is sealed.
func (q *Queue) Closed() <-chan struct{} {
	return q.sealed
}

// Outstanding returns the number of items pushed but not yet completed or
// discarded.
func (q *Queue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) + q.inFlight
}

// Len returns the number of pending (not yet popped) items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pushed:    q.pushed,
		Completed: q.completed,
		Discarded: q.discarded,
		Pending:   len(q.items),
		InFlight:  q.inFlight,
	}
}

// Wait blocks until the outstanding count reaches zero or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.items)+q.inFlight == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
