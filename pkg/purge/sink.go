package purge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Mode selects what a run does with each discovered item.
type Mode string

const (
	// ModeReport records the items without touching the remote.
	ModeReport Mode = "report"

	// ModeDelete performs the destructive remote action.
	ModeDelete Mode = "delete"
)

// Sink acts on a single item identifier.
type Sink interface {
	Act(ctx context.Context, id string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, id string) error

// Act calls f(ctx, id).
func (f SinkFunc) Act(ctx context.Context, id string) error {
	return f(ctx, id)
}

// Deleter is the remote mutating action used by RemoteSink.
type Deleter interface {
	DeleteRepo(ctx context.Context, repoURL string) error
}

// RemoteSink deletes every item through a Deleter.
type RemoteSink struct {
	deleter Deleter
	out     io.Writer
	logger  zerolog.Logger
}

// NewRemoteSink creates a destructive sink. Progress lines ("Deleting... <id>")
// are written to out when it is non-nil.
func NewRemoteSink(deleter Deleter, out io.Writer, logger zerolog.Logger) *RemoteSink {
	return &RemoteSink{
		deleter: deleter,
		out:     out,
		logger:  logger,
	}
}

// Act implements Sink.
func (s *RemoteSink) Act(ctx context.Context, id string) error {
	if s.out != nil {
		fmt.Fprintf(s.out, "Deleting... %s\n", id)
	}

	if err := s.deleter.DeleteRepo(ctx, id); err != nil {
		ItemsProcessed.WithLabelValues(string(ModeDelete), "error").Inc()
		return err
	}

	ItemsProcessed.WithLabelValues(string(ModeDelete), "ok").Inc()
	s.logger.Debug().Str("repo", id).Msg("Repository deleted")
	return nil
}

// ReportSink never calls the remote. It records every identifier in arrival
// order and echoes it to out.
type ReportSink struct {
	mu       sync.Mutex
	out      io.Writer
	recorded []string
}

// NewReportSink creates a report-only sink writing to out (may be nil).
func NewReportSink(out io.Writer) *ReportSink {
	return &ReportSink{out: out}
}

// Act implements Sink.
func (s *ReportSink) Act(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recorded = append(s.recorded, id)
	if s.out != nil {
		fmt.Fprintln(s.out, id)
	}
	ItemsProcessed.WithLabelValues(string(ModeReport), "ok").Inc()
	return nil
}

// Recorded returns a copy of the identifiers seen so far.
func (s *ReportSink) Recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recorded...)
}

// SinkError reports a failed action on one item. It is fatal to the consumer
// that hit it.
type SinkError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("act on %s: %v", e.ID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SinkError) Unwrap() error {
	return e.Err
}
