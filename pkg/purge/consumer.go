package purge

import (
	"context"
	"errors"
	"runtime"

	"github.com/Sternrassler/fork-purger/pkg/workqueue"
	"github.com/rs/zerolog"
)

// consumer is one worker of the pool.
type consumer struct {
	id       int
	queue    *workqueue.Queue
	gate     *workqueue.Gate
	sink     Sink
	maxItems int
	logger   zerolog.Logger

	processed int
	failed    int
}

// run pops and acts on items until the sealed queue is empty, maxItems is
// reached, a sink call fails or ctx is cancelled.
//
// ctx is the pipeline context and guards every suspension point. actCtx is
// handed to the sink: it is not cancelled by the pipeline, so an item already
// popped is always finished and marked done.
func (c *consumer) run(ctx, actCtx context.Context) error {
	select {
	case <-c.gate.Ready():
	case <-c.queue.Closed():
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		id, err := c.queue.Pop(ctx)
		if errors.Is(err, workqueue.ErrClosed) {
			c.logger.Debug().
				Int("worker_id", c.id).
				Int("processed", c.processed).
				Msg("Worker completed")
			return nil
		}
		if err != nil {
			return err
		}

		actErr := c.sink.Act(actCtx, id)
		runtime.Gosched()
		c.queue.Done()
		QueueOutstanding.Set(float64(c.queue.Outstanding()))

		if actErr != nil {
			c.failed++
			c.logger.Warn().
				Err(actErr).
				Int("worker_id", c.id).
				Str("repo", id).
				Msg("Item action failed")
			return &SinkError{ID: id, Err: actErr}
		}

		c.processed++
		if c.maxItems > 0 && c.processed == c.maxItems {
			c.logger.Debug().
				Int("worker_id", c.id).
				Int("processed", c.processed).
				Msg("Worker item limit reached")
			return nil
		}
	}
}
