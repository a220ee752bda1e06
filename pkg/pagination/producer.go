package pagination

import (
	"context"
	"runtime"
	"time"

	"github.com/Sternrassler/fork-purger/pkg/workqueue"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config holds producer configuration
type Config struct {
	// MaxPages stops the walk after this many pages (0 = until exhausted).
	// Used for bounded batch runs and tests.
	MaxPages int
	// PagePause is the pause between two page fetches (0 = only yield)
	PagePause time.Duration
}

// DefaultConfig returns the default producer configuration
func DefaultConfig() Config {
	return Config{
		MaxPages:  0,
		PagePause: 300 * time.Millisecond,
	}
}

// Producer walks a PageSource and pushes every identifier onto a queue.
type Producer struct {
	source  PageSource
	queue   *workqueue.Queue
	gate    *workqueue.Gate
	config  Config
	limiter *rate.Limiter
	logger  zerolog.Logger

	pages    int
	enqueued int
}

// NewProducer creates a producer over the given queue and gate. The queue and
// gate are owned by the caller.
func NewProducer(source PageSource, queue *workqueue.Queue, gate *workqueue.Gate, config Config, logger zerolog.Logger) *Producer {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	limit := rate.Inf
	if config.PagePause > 0 {
		limit = rate.Every(config.PagePause)
	}

	return &Producer{
		source:  source,
		queue:   queue,
		gate:    gate,
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "producer").Logger(),
	}
}

// Run fetches pages starting at 1 until a page is exhausted, MaxPages is
// reached, a fetch fails or ctx is cancelled.
//
// On a normal stop the queue is sealed so consumers can finish once it is
// empty. A fetch failure returns a *SourceError and leaves the queue open.
func (p *Producer) Run(ctx context.Context) error {
	start := time.Now()

	for page := 1; ; page++ {
		// Pacing between pages; the first call does not wait.
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		runtime.Gosched()

		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := p.source.FetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			PagesFetched.WithLabelValues("error").Inc()
			p.logger.Warn().
				Err(err).
				Int("page", page).
				Msg("Page fetch failed")
			return &SourceError{Page: page, Err: err}
		}
		p.pages++

		if result.Exhausted {
			PagesFetched.WithLabelValues("exhausted").Inc()
			p.logger.Info().
				Int("page", page).
				Int("enqueued", p.enqueued).
				Dur("duration", time.Since(start)).
				Msg("Source exhausted")
			p.queue.Close()
			return nil
		}

		PagesFetched.WithLabelValues("items").Inc()
		for _, id := range result.Items {
			if err := p.queue.Push(id); err != nil {
				return err
			}
			p.enqueued++
			ItemsEnqueued.Inc()
		}

		if len(result.Items) > 0 {
			p.gate.Open()
		}

		p.logger.Debug().
			Int("page", page).
			Int("items", len(result.Items)).
			Msg("Page enqueued")

		if p.config.MaxPages > 0 && page == p.config.MaxPages {
			p.logger.Info().
				Int("page", page).
				Int("enqueued", p.enqueued).
				Msg("Page limit reached")
			p.queue.Close()
			return nil
		}
	}
}

// Pages returns the number of pages fetched successfully. Only valid after
// Run has returned.
func (p *Producer) Pages() int {
	return p.pages
}

// Enqueued returns the number of identifiers pushed. Only valid after Run has
// returned.
func (p *Producer) Enqueued() int {
	return p.enqueued
}
