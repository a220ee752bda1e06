// Package pagination walks a paginated collection page by page and feeds the
// discovered item identifiers into a work queue.
//
// A Producer requests pages 1, 2, 3, ... strictly in order from a PageSource
// and stops at the first exhausted page, never requesting the page after it.
// After every non-empty page it opens the readiness gate so that consumers
// blocked on it can start popping.
//
// Example usage:
//
//	queue := workqueue.New()
//	gate := workqueue.NewGate()
//	producer := pagination.NewProducer(source, queue, gate, pagination.DefaultConfig(), logger)
//	err := producer.Run(ctx)
//
// The producer:
//   - Fetches pages sequentially, never concurrently
//   - Pushes identifiers in page order
//   - Paces itself between pages (Config.PagePause)
//   - Seals the queue when it stops normally (exhaustion or MaxPages)
//   - Fails fast with a *SourceError, no retries
package pagination
