package purge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/fork-purger/pkg/pagination"
	"github.com/rs/zerolog"
)

// recordingSink records every identifier it acts on, optionally failing for
// some of them.
type recordingSink struct {
	mu     sync.Mutex
	seen   []string
	failOn map[string]error
	delay  time.Duration
}

func (s *recordingSink) Act(ctx context.Context, id string) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, id)
	if err, ok := s.failOn[id]; ok {
		return err
	}
	return nil
}

func (s *recordingSink) Seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// trackingSource wraps a SliceSource and counts fetches.
type trackingSource struct {
	pages  pagination.SliceSource
	failAt int
	err    error
	calls  atomic.Int32
}

func (s *trackingSource) FetchPage(ctx context.Context, page int) (pagination.Page, error) {
	s.calls.Add(1)
	if s.failAt == page {
		return pagination.Page{}, s.err
	}
	return s.pages.FetchPage(ctx, page)
}

func testConfig(concurrency int) Config {
	return Config{
		Concurrency: concurrency,
		Pagination:  pagination.Config{PagePause: 0},
	}
}

func runWithTimeout(t *testing.T, o *Orchestrator) (Result, error) {
	t.Helper()

	type ret struct {
		res Result
		err error
	}
	done := make(chan ret, 1)
	go func() {
		res, err := o.Run(context.Background())
		done <- ret{res, err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return (deadlock?)")
		return Result{}, nil
	}
}

func newOrchestrator(t *testing.T, src pagination.PageSource, sink Sink, cfg Config) *Orchestrator {
	t.Helper()
	o, err := New(src, sink, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestNew_Validation(t *testing.T) {
	src := pagination.SliceSource{}
	sink := NewReportSink(nil)

	tests := []struct {
		name     string
		source   pagination.PageSource
		sink     Sink
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			source: src,
			sink:   sink,
			config: DefaultConfig(),
		},
		{
			name:     "nil source",
			sink:     sink,
			config:   DefaultConfig(),
			errorMsg: "page source is required",
		},
		{
			name:     "nil sink",
			source:   src,
			config:   DefaultConfig(),
			errorMsg: "sink is required",
		},
		{
			name:     "zero concurrency",
			source:   src,
			sink:     sink,
			config:   Config{Concurrency: 0},
			errorMsg: "concurrency must be >= 1 (got 0)",
		},
		{
			name:     "negative item limit",
			source:   src,
			sink:     sink,
			config:   Config{Concurrency: 1, MaxItemsPerConsumer: -1},
			errorMsg: "max items per consumer must be >= 0 (got -1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := New(tt.source, tt.sink, tt.config, zerolog.Nop())
			if tt.errorMsg == "" {
				if err != nil || o == nil {
					t.Fatalf("New() = (%v, %v), want orchestrator", o, err)
				}
				return
			}
			if err == nil || err.Error() != tt.errorMsg {
				t.Errorf("New() error = %v, want %q", err, tt.errorMsg)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.Pagination.PagePause != 300*time.Millisecond {
		t.Errorf("PagePause = %v, want 300ms", cfg.Pagination.PagePause)
	}
}

// Scenario A: two items on page 1, page 2 empty, one consumer.
func TestRun_SingleConsumerProcessesInOrder(t *testing.T) {
	src := &trackingSource{pages: pagination.SliceSource{{"r1", "r2"}, {}}}
	sink := &recordingSink{}

	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, testConfig(1)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seen := sink.Seen()
	if len(seen) != 2 || seen[0] != "r1" || seen[1] != "r2" {
		t.Errorf("processed = %v, want [r1 r2]", seen)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if res.Processed != 2 || res.Enqueued != 2 || res.Pages != 2 || res.Discarded != 0 {
		t.Errorf("Result = %+v, want processed=2 enqueued=2 pages=2 discarded=0", res)
	}
	if res.RunID == "" {
		t.Error("Result.RunID should be set")
	}
	if res.Outstanding != 0 {
		t.Errorf("Outstanding = %d, want 0 after the run", res.Outstanding)
	}
}

// Scenario A with concurrency > 1: order is not guaranteed, membership is.
func TestRun_ConcurrentConsumersProcessAll(t *testing.T) {
	src := &trackingSource{pages: pagination.SliceSource{{"r1", "r2"}, {}}}
	sink := &recordingSink{}

	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, testConfig(3)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := sorted(sink.Seen())
	if len(got) != 2 || got[0] != "r1" || got[1] != "r2" {
		t.Errorf("processed = %v, want r1 and r2 once each", got)
	}
	if res.Outstanding != 0 {
		t.Errorf("Outstanding = %d, want 0 after the run", res.Outstanding)
	}
}

// Every pushed item is processed exactly once across many pages and consumers.
func TestRun_ExactlyOnceDelivery(t *testing.T) {
	var pages pagination.SliceSource
	var want []string
	for p := 0; p < 20; p++ {
		var page []string
		for i := 0; i < 7; i++ {
			id := fmt.Sprintf("repo-%d-%d", p, i)
			page = append(page, id)
			want = append(want, id)
		}
		pages = append(pages, page)
	}
	// Duplicates across pages pass through unchanged.
	pages = append(pages, []string{"dup", "dup"})
	want = append(want, "dup", "dup")

	sink := &recordingSink{}
	res, err := runWithTimeout(t, newOrchestrator(t, pages, sink, testConfig(5)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := sorted(sink.Seen())
	want = sorted(want)
	if len(got) != len(want) {
		t.Fatalf("processed %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if res.Processed != len(want) || res.Enqueued != len(want) {
		t.Errorf("Result = %+v, want processed=enqueued=%d", res, len(want))
	}
	if res.Outstanding != 0 {
		t.Errorf("Outstanding = %d, want 0 after the run", res.Outstanding)
	}
}

// Scenario B: the only item fails in the sink.
func TestRun_SinkFailure(t *testing.T) {
	sinkErr := errors.New("HTTP error: 403")
	src := &trackingSource{pages: pagination.SliceSource{{"r1"}}}
	sink := &recordingSink{failOn: map[string]error{"r1": sinkErr}}

	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, testConfig(1)))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Run() error = %v, want sink error", err)
	}

	var se *SinkError
	if !errors.As(err, &se) || se.ID != "r1" {
		t.Errorf("Run() error = %v, want *SinkError for r1", err)
	}
	if res.Failed != 1 || res.Processed != 0 {
		t.Errorf("Result = %+v, want failed=1 processed=0", res)
	}
	if res.Outstanding != 0 {
		t.Errorf("Outstanding = %d, want 0 after the run", res.Outstanding)
	}
}

// A sink failure stops new work: no later page is fetched once the failure
// is observed and no further item starts.
func TestRun_SinkFailureStopsNewWork(t *testing.T) {
	sinkErr := errors.New("boom")
	fetched := atomic.Int32{}
	failed := make(chan struct{})

	src := pagination.SourceFunc(func(ctx context.Context, page int) (pagination.Page, error) {
		fetched.Add(1)
		if page > 1 {
			// Block until the failure is observed, then honor cancellation.
			<-failed
			<-ctx.Done()
			return pagination.Page{}, ctx.Err()
		}
		return pagination.Page{Number: 1, Items: []string{"bad", "a", "b", "c"}}, nil
	})

	sink := SinkFunc(func(ctx context.Context, id string) error {
		if id == "bad" {
			close(failed)
			return sinkErr
		}
		return nil
	})

	cfg := testConfig(1)
	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, cfg))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Run() error = %v, want sink error", err)
	}
	if res.Processed != 0 {
		t.Errorf("Processed = %d, want 0 (nothing after the failure)", res.Processed)
	}
	if res.Discarded != 3 {
		t.Errorf("Discarded = %d, want 3", res.Discarded)
	}
	if res.Outstanding != 0 {
		t.Errorf("Outstanding = %d, want 0 after the run", res.Outstanding)
	}
	if got := fetched.Load(); got > 2 {
		t.Errorf("fetch calls = %d, want at most 2", got)
	}
}

// Scenario C: the first page fetch fails; nothing reaches the sink.
func TestRun_SourceFailure(t *testing.T) {
	srcErr := errors.New("401 Bad credentials")
	src := &trackingSource{
		pages:  pagination.SliceSource{{"r1"}},
		failAt: 1,
		err:    srcErr,
	}
	sink := &recordingSink{}

	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, testConfig(5)))
	if !errors.Is(err, srcErr) {
		t.Fatalf("Run() error = %v, want source error", err)
	}

	var se *pagination.SourceError
	if !errors.As(err, &se) || se.Page != 1 {
		t.Errorf("Run() error = %v, want *SourceError for page 1", err)
	}
	if n := len(sink.Seen()); n != 0 {
		t.Errorf("sink calls = %d, want 0", n)
	}
	if res.Processed != 0 || res.Enqueued != 0 {
		t.Errorf("Result = %+v, want nothing enqueued or processed", res)
	}
}

// Scenario D: report-only mode records every identifier.
func TestRun_ReportOnly(t *testing.T) {
	var out bytes.Buffer
	sink := NewReportSink(&out)
	src := pagination.SliceSource{{"r1", "r2", "r3"}}
	if _, err := runWithTimeout(t, newOrchestrator(t, src, sink, testConfig(2))); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := sorted(sink.Recorded())
	if len(got) != 3 || got[0] != "r1" || got[1] != "r2" || got[2] != "r3" {
		t.Errorf("Recorded() = %v, want [r1 r2 r3]", got)
	}
	for _, id := range []string{"r1", "r2", "r3"} {
		if !strings.Contains(out.String(), id) {
			t.Errorf("output missing %q: %q", id, out.String())
		}
	}
}

func TestRun_EmptySource(t *testing.T) {
	sink := &recordingSink{}
	res, err := runWithTimeout(t, newOrchestrator(t, pagination.SliceSource{}, sink, testConfig(3)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Pages != 1 || res.Processed != 0 {
		t.Errorf("Result = %+v, want pages=1 processed=0", res)
	}
}

// A consumer that reaches its item limit ends the run; unpopped items are
// discarded rather than left outstanding.
func TestRun_MaxItemsPerConsumer(t *testing.T) {
	src := pagination.SliceSource{{"a", "b", "c", "d", "e"}, {"f", "g"}}
	sink := &recordingSink{}

	cfg := testConfig(1)
	cfg.MaxItemsPerConsumer = 2

	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, cfg))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seen := sink.Seen()
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("processed = %v, want [a b]", seen)
	}
	if res.Processed+res.Discarded != res.Enqueued {
		t.Errorf("Result = %+v, want processed+discarded == enqueued", res)
	}
	if res.Outstanding != 0 {
		t.Errorf("Outstanding = %d, want 0 after the run", res.Outstanding)
	}
}

func TestRun_MaxPages(t *testing.T) {
	src := &trackingSource{pages: pagination.SliceSource{{"a"}, {"b"}, {"c"}}}
	sink := &recordingSink{}

	cfg := testConfig(2)
	cfg.Pagination.MaxPages = 2

	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, cfg))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if got := sorted(sink.Seen()); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("processed = %v, want [a b]", got)
	}
	if res.Processed != 2 {
		t.Errorf("Processed = %d, want 2", res.Processed)
	}
}

// In-flight work is finished before Run returns even when another consumer
// fails first.
func TestRun_DrainsInFlightOnFailure(t *testing.T) {
	sinkErr := errors.New("fail fast")
	slowStarted := make(chan struct{})
	var slowFinished atomic.Bool

	sink := SinkFunc(func(ctx context.Context, id string) error {
		switch id {
		case "slow":
			close(slowStarted)
			time.Sleep(100 * time.Millisecond)
			slowFinished.Store(true)
			return nil
		case "bad":
			<-slowStarted
			return sinkErr
		}
		return nil
	})

	src := pagination.SliceSource{{"slow", "bad"}}
	res, err := runWithTimeout(t, newOrchestrator(t, src, sink, testConfig(2)))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("Run() error = %v, want sink error", err)
	}
	if !slowFinished.Load() {
		t.Error("Run() returned before the in-flight item finished")
	}
	if res.Processed != 1 || res.Failed != 1 {
		t.Errorf("Result = %+v, want processed=1 failed=1", res)
	}
}

// Only the first failure is reported.
func TestRun_FirstFailureWins(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	firstReturned := make(chan struct{})

	sink := SinkFunc(func(ctx context.Context, id string) error {
		if id == "one" {
			defer close(firstReturned)
			return first
		}
		<-firstReturned
		time.Sleep(20 * time.Millisecond)
		return second
	})

	src := pagination.SliceSource{{"one", "two"}}
	_, err := runWithTimeout(t, newOrchestrator(t, src, sink, testConfig(2)))
	if !errors.Is(err, first) {
		t.Errorf("Run() error = %v, want first failure", err)
	}
	if errors.Is(err, second) {
		t.Error("later failure must not be surfaced")
	}
}

func TestRun_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := pagination.SourceFunc(func(ctx context.Context, page int) (pagination.Page, error) {
		cancel()
		<-ctx.Done()
		return pagination.Page{}, ctx.Err()
	})

	o := newOrchestrator(t, src, &recordingSink{}, testConfig(2))
	_, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_FreshStatePerRun(t *testing.T) {
	src := pagination.SliceSource{{"x", "y"}}
	sink := NewReportSink(nil)
	o := newOrchestrator(t, src, sink, testConfig(2))

	for i := 0; i < 2; i++ {
		res, err := runWithTimeout(t, o)
		if err != nil {
			t.Fatalf("run %d error = %v", i, err)
		}
		if res.Enqueued != 2 || res.Processed != 2 {
			t.Errorf("run %d Result = %+v, want enqueued=processed=2", i, res)
		}
	}
	if n := len(sink.Recorded()); n != 4 {
		t.Errorf("Recorded() has %d entries, want 4", n)
	}
}

func TestRunFunc(t *testing.T) {
	sink := &recordingSink{}
	res, err := Run(context.Background(), pagination.SliceSource{{"x", "y"}}, sink, testConfig(2), zerolog.Nop())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Processed != 2 || res.RunID == "" {
		t.Errorf("Result = %+v, want 2 processed and a run id", res)
	}

	if _, err := Run(context.Background(), nil, sink, testConfig(1), zerolog.Nop()); err == nil {
		t.Error("Run() expected error for nil source")
	}
}
