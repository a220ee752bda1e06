package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/fork-purger/pkg/pagination"
	"github.com/Sternrassler/fork-purger/pkg/workqueue"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Concurrency is the number of consumers.
	Concurrency int

	// MaxItemsPerConsumer stops a consumer after this many successful items
	// (0 = no limit). Used for bounded runs and tests.
	MaxItemsPerConsumer int

	// Pagination configures the producer.
	Pagination pagination.Config
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 5,
		Pagination:  pagination.DefaultConfig(),
	}
}

// Result summarizes one run.
type Result struct {
	RunID     string
	Pages     int
	Enqueued  int
	Processed int
	Failed    int
	Discarded int

	// Outstanding is the queue's outstanding count after the drain. It is
	// zero for every run that returns.
	Outstanding int

	Duration time.Duration
}

// Orchestrator runs one producer and a pool of consumers over a fresh queue
// and gate per Run call.
type Orchestrator struct {
	source pagination.PageSource
	sink   Sink
	config Config
	logger zerolog.Logger
}

// New creates an orchestrator.
func New(source pagination.PageSource, sink Sink, cfg Config, logger zerolog.Logger) (*Orchestrator, error) {
	if source == nil {
		return nil, fmt.Errorf("page source is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1 (got %d)", cfg.Concurrency)
	}
	if cfg.MaxItemsPerConsumer < 0 {
		return nil, fmt.Errorf("max items per consumer must be >= 0 (got %d)", cfg.MaxItemsPerConsumer)
	}

	return &Orchestrator{
		source: source,
		sink:   sink,
		config: cfg,
		logger: logger.With().Str("component", "purge").Logger(),
	}, nil
}

// outcome is the terminal event of one task.
type outcome struct {
	task     string
	producer bool
	err      error
}

// Run executes the pipeline once.
//
// The first task to settle decides the outcome. A failure from any task, or a
// consumer finishing, cancels every other task; a producer finishing cleanly
// only seals the queue and the race continues among the consumers. Pending
// items are then discarded, in-flight items are waited for, and the captured
// error (if any) is returned.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	result := Result{RunID: uuid.NewString()}
	logger := o.logger.With().Str("run_id", result.RunID).Logger()

	queue := workqueue.New()
	gate := workqueue.NewGate()
	QueueOutstanding.Set(0)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Tasks report through settled; the group only joins them.
	settled := make(chan outcome, o.config.Concurrency+1)
	var g errgroup.Group

	producer := pagination.NewProducer(o.source, queue, gate, o.config.Pagination, logger)
	g.Go(func() error {
		err := producer.Run(runCtx)
		settled <- outcome{task: "producer", producer: true, err: err}
		return nil
	})

	consumers := make([]*consumer, o.config.Concurrency)
	for i := range consumers {
		c := &consumer{
			id:       i,
			queue:    queue,
			gate:     gate,
			sink:     o.sink,
			maxItems: o.config.MaxItemsPerConsumer,
			logger:   logger,
		}
		consumers[i] = c
		g.Go(func() error {
			err := c.run(runCtx, ctx)
			settled <- outcome{task: fmt.Sprintf("consumer-%d", c.id), err: err}
			return nil
		})
	}

	logger.Info().
		Int("concurrency", o.config.Concurrency).
		Int("max_pages", o.config.Pagination.MaxPages).
		Int("max_items", o.config.MaxItemsPerConsumer).
		Msg("Run started")

	var captured error
	pending := o.config.Concurrency + 1
	for pending > 0 {
		out := <-settled
		pending--

		if out.err != nil {
			if ctx.Err() != nil {
				captured = ctx.Err()
			} else {
				captured = out.err
			}
			logger.Debug().Err(out.err).Str("task", out.task).Msg("Task failed first")
			break
		}
		if out.producer {
			logger.Debug().Msg("Producer finished, consumers draining sealed queue")
			continue
		}
		logger.Debug().Str("task", out.task).Msg("Task finished first")
		break
	}

	cancel()
	result.Discarded = queue.Abort()
	if result.Discarded > 0 {
		ItemsDiscarded.Add(float64(result.Discarded))
		logger.Warn().
			Int("discarded", result.Discarded).
			Msg("Discarded queued items after cancellation")
	}

	// In-flight sink calls are not cancelled by the pipeline, so the drain
	// is bounded by them alone.
	if err := queue.Wait(context.Background()); err != nil {
		return result, err
	}
	g.Wait()
	close(settled)

	for out := range settled {
		if out.err != nil && !isCancellation(out.err) {
			logger.Debug().Err(out.err).Str("task", out.task).Msg("Error superseded by earlier outcome")
		}
	}

	result.Pages = producer.Pages()
	result.Enqueued = producer.Enqueued()
	for _, c := range consumers {
		result.Processed += c.processed
		result.Failed += c.failed
	}
	result.Outstanding = queue.Outstanding()
	result.Duration = time.Since(start)
	QueueOutstanding.Set(float64(result.Outstanding))

	if captured == nil && ctx.Err() != nil {
		captured = ctx.Err()
	}

	event := logger.Info()
	outcomeLabel := "success"
	if captured != nil {
		event = logger.Error().Err(captured)
		outcomeLabel = "failure"
	}
	RunDuration.WithLabelValues(outcomeLabel).Observe(result.Duration.Seconds())
	event.
		Int("pages", result.Pages).
		Int("enqueued", result.Enqueued).
		Int("processed", result.Processed).
		Int("discarded", result.Discarded).
		Dur("duration", result.Duration).
		Msg("Run finished")

	return result, captured
}

// isCancellation reports errors that only signal a task was stopped by the
// pipeline.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, workqueue.ErrClosed)
}

// Run creates an orchestrator and executes it once.
func Run(ctx context.Context, source pagination.PageSource, sink Sink, cfg Config, logger zerolog.Logger) (Result, error) {
	o, err := New(source, sink, cfg, logger)
	if err != nil {
		return Result{}, err
	}
	return o.Run(ctx)
}
