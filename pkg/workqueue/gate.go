package workqueue

import (
	"context"
	"sync"
)

// Gate is a one-shot latch. It starts closed, Open releases every current and
// future waiter, and it never closes again.
type Gate struct {
	once  sync.Once
	ready chan struct{}
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{ready: make(chan struct{})}
}

// Open opens the gate. Calling it more than once is a no-op.
func (g *Gate) Open() {
	g.once.Do(func() {
		close(g.ready)
	})
}

// IsOpen reports whether Open has been called.
func (g *Gate) IsOpen() bool {
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// Ready returns a channel that is closed once the gate opens.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// Wait blocks until the gate opens or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
