// Package purge coordinates one paginating producer and a bounded pool of
// consumers that act on every discovered item.
//
// A run owns a fresh work queue and readiness gate. The producer walks the
// page source and fills the queue; consumers wait on the gate once, then pop
// items and hand them to a Sink. The orchestrator races all tasks:
//
//   - The first failure (source or sink) becomes the run's error and cancels
//     every other task.
//   - A consumer that finishes (item limit, or sealed and empty queue) ends
//     the run.
//   - A producer that finishes cleanly seals the queue; consumers drain it.
//
// After the race, items that were never popped are discarded, and the run
// waits until every popped item has been marked done before returning.
//
// Example usage:
//
//	orch, err := purge.New(source, purge.NewReportSink(os.Stdout), purge.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	result, err := orch.Run(ctx)
package purge
