// Package metrics exposes the Prometheus metrics of a purge run.
// Metrics are defined in their respective packages (purge, pagination,
// client, cache, ratelimit) via promauto to avoid circular dependencies;
// this package documents them and serves the registry over HTTP.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by all packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler at Path on addr until ctx is cancelled.
// A listen failure is returned immediately; a clean shutdown returns nil.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, listener, logger)
}

func serve(ctx context.Context, listener net.Listener, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", listener.Addr().String()).Msg("Metrics server listening")
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("Metrics server stopped")
	return nil
}

// Metrics Documentation
//
// Pipeline Metrics (pkg/purge, pkg/pagination):
//   - purge_pages_fetched_total{result} (Counter): Page fetches by result (items, exhausted, error)
//   - purge_items_enqueued_total (Counter): Items pushed to the work queue
//   - purge_items_processed_total{mode, result} (Counter): Sink calls by mode and result
//   - purge_items_discarded_total (Counter): Queued items dropped after cancellation
//   - purge_queue_outstanding (Gauge): Items pushed but not yet done
//   - purge_run_duration_seconds{outcome} (Histogram): Run duration by outcome
//
// Request Metrics (pkg/client):
//   - github_requests_total{endpoint, status} (Counter): Requests by endpoint template and HTTP status
//   - github_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - github_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - github_retries_total{error_class} (Counter): Retry attempts by error class
//   - github_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - github_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - github_rate_limit_remaining (Gauge): Requests left in the current window
//   - github_rate_limit_blocks_total (Counter): Requests blocked at the critical threshold
//   - github_rate_limit_throttles_total (Counter): Requests throttled at the warning threshold
//
// Cache Metrics (pkg/cache):
//   - github_cache_hits_total{layer="redis"} (Counter): Cache hits
//   - github_cache_misses_total (Counter): Cache misses
//   - github_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - github_conditional_requests_total (Counter): Requests sent with If-None-Match
//   - github_304_responses_total (Counter): 304 Not Modified responses
//   - github_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Delete failure ratio
//   sum(rate(purge_items_processed_total{mode="delete",result="error"}[5m])) /
//   sum(rate(purge_items_processed_total{mode="delete"}[5m]))
//
//   # Rate limit headroom
//   github_rate_limit_remaining < 100
//
//   # 304 Response Rate
//   rate(github_304_responses_total[5m]) / rate(github_requests_total{endpoint="/users/{user}/repos"}[5m])
