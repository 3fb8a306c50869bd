package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
	"github.com/joseph-ayodele/hr-extractor/internal/queue"
	"github.com/joseph-ayodele/hr-extractor/internal/status"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedExtractor answers by filename; each filename may have a list of errors consumed per call.
type scriptedExtractor struct {
	mu     sync.Mutex
	errs   map[string][]error
	calls  []string
	before func(ctx context.Context, req llm.ExtractRequest) error
}

func (s *scriptedExtractor) ExtractFields(ctx context.Context, req llm.ExtractRequest) (entity.EmployeeRecord, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Filename)
	var err error
	if q := s.errs[req.Filename]; len(q) > 0 {
		err = q[0]
		s.errs[req.Filename] = q[1:]
	}
	hook := s.before
	s.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, req); herr != nil {
			return entity.EmployeeRecord{}, nil, herr
		}
	}
	if err != nil {
		return entity.EmployeeRecord{}, nil, err
	}
	return entity.EmployeeRecord{Nome: "Nome " + req.Filename, CPF: "123.456.789-00"}, []byte(`{}`), nil
}

func (s *scriptedExtractor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	hook   func(ctx context.Context) error
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return ctx.Err()
}

func (r *recordingSleeper) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func enqueue(t *testing.T, q *queue.Queue, names ...string) []entity.QueueItem {
	t.Helper()
	docs := make([]entity.Document, 0, len(names))
	for _, n := range names {
		docs = append(docs, entity.Document{Filename: n, MediaType: constants.MediaTypePNG, Data: []byte("img-" + n)})
	}
	items, err := q.Enqueue(docs...)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return items
}

func newTestProcessor(q *queue.Queue, fe llm.FieldExtractor, sl *recordingSleeper, opts ...Option) *Processor {
	opts = append([]Option{WithSleeper(sl.Sleep)}, opts...)
	return NewProcessor(testLogger(), q, fe, opts...)
}

func assertDelays(t *testing.T, got []time.Duration, want ...time.Duration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("delays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delays = %v, want %v", got, want)
		}
	}
}

func TestRunAllSuccessPacesBetweenItemsOnly(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png", "b.png", "c.png")
	fe := &scriptedExtractor{}
	sl := &recordingSleeper{}
	p := newTestProcessor(q, fe, sl)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	assertDelays(t, sl.Delays(), 12*time.Second, 12*time.Second)

	for _, it := range q.Items() {
		if it.Status != constants.ItemStatusCompleted || it.Result == nil {
			t.Fatalf("item %s = %s, want COMPLETED with result", it.Document.Filename, it.Status)
		}
	}
	if p.Status() != constants.BatchStatusCompleted || p.Running() {
		t.Fatalf("batch status = %s running=%t", p.Status(), p.Running())
	}
}

func TestRunQuotaFailureCoolsDown(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png", "b.png", "c.png")
	fe := &scriptedExtractor{errs: map[string][]error{
		"b.png": {errors.New("Error: 429 Too Many Requests")},
	}}
	sl := &recordingSleeper{}
	p := newTestProcessor(q, fe, sl)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	assertDelays(t, sl.Delays(), 12*time.Second, 60*time.Second)

	items := q.Items()
	if items[1].Status != constants.ItemStatusFailed || items[1].ErrorKind != constants.ErrorKindQuotaExceeded {
		t.Fatalf("b = %+v, want FAILED/QUOTA_EXCEEDED", items[1])
	}
	if items[1].ErrorMessage() != "Limite de Cota Atingido" || items[1].ErrorDetail == "" {
		t.Fatalf("b message = %q detail = %q", items[1].ErrorMessage(), items[1].ErrorDetail)
	}
	if items[2].Status != constants.ItemStatusCompleted {
		t.Fatalf("c = %s, want COMPLETED", items[2].Status)
	}
}

func TestRunOtherFailureUsesShortDelay(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png", "b.png")
	fe := &scriptedExtractor{errs: map[string][]error{"a.png": {errors.New("timeout")}}}
	sl := &recordingSleeper{}
	p := newTestProcessor(q, fe, sl)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	assertDelays(t, sl.Delays(), 2*time.Second)

	a, _ := q.Get(q.Items()[0].ID)
	if a.ErrorKind != constants.ErrorKindExtractionFailure || a.ErrorMessage() != "Falha na leitura" {
		t.Fatalf("a = %+v", a)
	}
}

func TestRunFailureDelayAppliesAfterLastItem(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "only.png")
	fe := &scriptedExtractor{errs: map[string][]error{"only.png": {errors.New("quota exceeded")}}}
	sl := &recordingSleeper{}
	p := newTestProcessor(q, fe, sl)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	assertDelays(t, sl.Delays(), 60*time.Second)
}

func TestRunRetriesOnlyFailedItems(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png", "b.png", "c.png")
	fe := &scriptedExtractor{errs: map[string][]error{
		"b.png": {errors.New("429 RESOURCE_EXHAUSTED")},
	}}
	sl := &recordingSleeper{}
	p := newTestProcessor(q, fe, sl)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	calls := fe.Calls()
	want := []string{"a.png", "b.png", "c.png", "b.png"}
	if fmt.Sprint(calls) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for _, it := range q.Items() {
		if it.Status != constants.ItemStatusCompleted {
			t.Fatalf("%s = %s, want COMPLETED", it.Document.Filename, it.Status)
		}
	}
	b := q.Items()[1]
	if b.ErrorKind != "" || b.Attempts != 2 {
		t.Fatalf("retried item = %+v", b)
	}
	// Run 1: 12s, 60s. Run 2: single successful item, nothing after it.
	assertDelays(t, sl.Delays(), 12*time.Second, 60*time.Second)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if len(fe.Calls()) != 4 {
		t.Fatalf("completed items were re-sent: %v", fe.Calls())
	}
	if p.Status() != constants.BatchStatusIdle {
		t.Fatalf("empty run status = %s, want IDLE", p.Status())
	}
}

func TestRunEmptyQueue(t *testing.T) {
	q := queue.New(testLogger())
	fe := &scriptedExtractor{}
	sl := &recordingSleeper{}
	p := newTestProcessor(q, fe, sl)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fe.Calls()) != 0 || len(sl.Delays()) != 0 {
		t.Fatal("empty run should not call the gateway or sleep")
	}
	if p.Status() != constants.BatchStatusIdle || p.Running() {
		t.Fatalf("status = %s running = %t", p.Status(), p.Running())
	}
}

func TestRunRejectsConcurrentInvocation(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png")
	entered := make(chan struct{})
	unblock := make(chan struct{})
	fe := &scriptedExtractor{before: func(ctx context.Context, _ llm.ExtractRequest) error {
		close(entered)
		<-unblock
		return nil
	}}
	p := newTestProcessor(q, fe, &recordingSleeper{})

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	<-entered

	if err := p.Run(context.Background()); !errors.Is(err, ErrBatchRunning) {
		t.Fatalf("second run err = %v, want ErrBatchRunning", err)
	}
	if p.Status() != constants.BatchStatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", p.Status())
	}
	if err := p.Reset(); !errors.Is(err, ErrBatchRunning) {
		t.Fatalf("reset while running err = %v", err)
	}
	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if p.Running() {
		t.Fatal("flag not released")
	}
	if len(fe.Calls()) != 1 {
		t.Fatalf("calls = %v", fe.Calls())
	}
}

func TestRunCancelledMidCallReleasesItem(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png", "b.png")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fe := &scriptedExtractor{before: func(ctx context.Context, _ llm.ExtractRequest) error {
		cancel()
		<-ctx.Done()
		return fmt.Errorf("post: %w", ctx.Err())
	}}
	p := newTestProcessor(q, fe, &recordingSleeper{})

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run err = %v, want context.Canceled", err)
	}
	for _, it := range q.Items() {
		if it.Status != constants.ItemStatusPending {
			t.Fatalf("%s = %s, want PENDING", it.Document.Filename, it.Status)
		}
		if it.Attempts != 0 || it.ErrorKind != "" {
			t.Fatalf("released item should not be billed: %+v", it)
		}
	}
	if p.Status() != constants.BatchStatusCancelled || p.Running() {
		t.Fatalf("status = %s running = %t", p.Status(), p.Running())
	}
	if len(fe.Calls()) != 1 {
		t.Fatalf("calls = %v, want only the first item", fe.Calls())
	}
}

func TestRunCancelledDuringPacing(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png", "b.png")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sl := &recordingSleeper{hook: func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}}
	p := newTestProcessor(q, &scriptedExtractor{}, sl)

	if err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("run err = %v, want context.Canceled", err)
	}
	items := q.Items()
	if items[0].Status != constants.ItemStatusCompleted || items[1].Status != constants.ItemStatusPending {
		t.Fatalf("statuses = %s, %s", items[0].Status, items[1].Status)
	}
}

type failingPreparer struct{}

func (failingPreparer) Prepare(context.Context, entity.Document) (llm.ExtractRequest, error) {
	return llm.ExtractRequest{}, errors.New("cannot determine media type")
}

func TestRunPreparationFailure(t *testing.T) {
	q := queue.New(testLogger())
	enqueue(t, q, "a.png")
	fe := &scriptedExtractor{}
	p := newTestProcessor(q, fe, &recordingSleeper{}, WithPreparer(failingPreparer{}))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fe.Calls()) != 0 {
		t.Fatal("gateway should not be called when preparation fails")
	}
	it := q.Items()[0]
	if it.Status != constants.ItemStatusFailed || it.ErrorKind != constants.ErrorKindExtractionFailure {
		t.Fatalf("item = %+v", it)
	}
}

func TestRunPublishesIntermediateStates(t *testing.T) {
	bus := status.NewEventBus(100)
	q := queue.New(testLogger(), queue.WithPublisher(bus))
	enqueue(t, q, "a.png", "b.png")
	fe := &scriptedExtractor{errs: map[string][]error{"b.png": {errors.New("exceeded")}}}
	p := newTestProcessor(q, fe, &recordingSleeper{}, WithPublisher(bus))

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var trail []string
	for _, ev := range bus.Since(0) {
		switch ev.Type {
		case status.EventTypeItem:
			trail = append(trail, ev.Filename+":"+string(ev.ItemStatus))
		case status.EventTypeBatch:
			trail = append(trail, "batch:"+string(ev.BatchStatus))
		case status.EventTypePacing:
			trail = append(trail, fmt.Sprintf("pacing:%s:%d", ev.Message, ev.DelayMs))
		}
	}
	want := []string{
		"a.png:PENDING", "b.png:PENDING",
		"batch:PROCESSING",
		"a.png:PROCESSING", "a.png:COMPLETED", "pacing:success:12000",
		"b.png:PROCESSING", "b.png:FAILED", "pacing:quota_cooldown:60000",
		"batch:COMPLETED",
	}
	if fmt.Sprint(trail) != fmt.Sprint(want) {
		t.Fatalf("trail =\n%v\nwant\n%v", trail, want)
	}
}

func TestPacingAfter(t *testing.T) {
	p := Pacing{SuccessDelay: time.Second, QuotaCooldown: 5 * time.Second, FailureDelay: 2 * time.Second}
	cases := []struct {
		res  outcome
		last bool
		want time.Duration
	}{
		{outcomeCompleted, false, time.Second},
		{outcomeCompleted, true, 0},
		{outcomeQuota, true, 5 * time.Second},
		{outcomeFailure, false, 2 * time.Second},
		{outcomeReleased, false, 0},
	}
	for _, tc := range cases {
		if got, _ := p.after(tc.res, tc.last); got != tc.want {
			t.Fatalf("after(%s, last=%t) = %v, want %v", tc.res, tc.last, got, tc.want)
		}
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("err = %v", err)
	}
}
