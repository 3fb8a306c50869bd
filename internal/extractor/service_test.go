package extractor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/export"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
	"github.com/joseph-ayodele/hr-extractor/internal/pipeline"
	"github.com/joseph-ayodele/hr-extractor/internal/queue"
	"github.com/joseph-ayodele/hr-extractor/internal/status"
)

type gatedExtractor struct {
	mu    sync.Mutex
	gate  chan struct{} // nil: answer immediately
	fail  map[string]error
	calls int
}

func (g *gatedExtractor) ExtractFields(ctx context.Context, req llm.ExtractRequest) (entity.EmployeeRecord, []byte, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gate
	err := g.fail[req.Filename]
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return entity.EmployeeRecord{}, nil, ctx.Err()
		}
	}
	if err != nil {
		return entity.EmployeeRecord{}, nil, err
	}
	return entity.EmployeeRecord{Nome: "João Silva", CPF: "123.456.789-00"}, nil, nil
}

func newService(t *testing.T, fe llm.FieldExtractor) *Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := status.NewEventBus(0)
	q := queue.New(log, queue.WithPublisher(bus))
	proc := pipeline.NewProcessor(log, q, fe, pipeline.WithPacing(pipeline.Pacing{}), pipeline.WithPublisher(bus))
	exp := export.NewService(&export.LocalSink{Dir: t.TempDir()}, "", log)
	return New(Deps{Queue: q, Processor: proc, Exporter: exp, Events: bus, Logger: log})
}

func doc(name string) entity.Document {
	return entity.Document{Filename: name, MediaType: "image/png", Data: []byte(name)}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUploadValidation(t *testing.T) {
	svc := newService(t, &gatedExtractor{})
	if _, err := svc.Upload(); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("empty upload err = %v", err)
	}
	_, err := svc.Upload(entity.Document{Filename: "a.tiff", MediaType: "image/tiff", Data: []byte("x")})
	if !errors.Is(err, common.ErrInvalidInput) || !errors.Is(err, queue.ErrUnsupportedMediaType) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunSyncAndExport(t *testing.T) {
	svc := newService(t, &gatedExtractor{fail: map[string]error{"b.png": errors.New("429 quota")}})

	if _, _, _, err := svc.ExportXLSX(); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("export before run err = %v", err)
	}
	if _, err := svc.Upload(doc("a.png"), doc("b.png")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.RunSync(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	snap := svc.Snapshot()
	if snap.Total != 2 || snap.Completed != 1 || snap.Failed != 1 || snap.Batch != constants.BatchStatusCompleted {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Failures) != 1 || snap.Failures[0].Message != "Limite de Cota Atingido" {
		t.Fatalf("failures = %+v", snap.Failures)
	}

	bs, name, rows, err := svc.ExportXLSX()
	if err != nil || len(bs) == 0 || rows != 1 || name != constants.ExportFilename {
		t.Fatalf("export = %d bytes, %q, %d rows, err %v", len(bs), name, rows, err)
	}
	res, err := svc.Export(context.Background())
	if err != nil || res.Rows != 1 {
		t.Fatalf("export to sink = %+v, %v", res, err)
	}
	if len(svc.Events(0)) == 0 {
		t.Fatal("expected events")
	}
}

func TestBusyRunRejectsClearAndSecondStart(t *testing.T) {
	fe := &gatedExtractor{gate: make(chan struct{})}
	svc := newService(t, fe)
	if _, err := svc.Upload(doc("a.png")); err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return svc.Snapshot().Processing == 1 })

	if err := svc.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second start err = %v", err)
	}
	if err := svc.RunSync(context.Background()); !errors.Is(err, pipeline.ErrBatchRunning) {
		t.Fatalf("run sync err = %v", err)
	}
	if _, err := svc.Clear(); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("clear err = %v", err)
	}

	close(fe.gate)
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	n, err := svc.Clear()
	if err != nil || n != 1 {
		t.Fatalf("clear = %d, %v", n, err)
	}
	if snap := svc.Snapshot(); snap.Total != 0 || snap.Batch != constants.BatchStatusIdle {
		t.Fatalf("snapshot after clear = %+v", snap)
	}
}

func TestCancelReleasesItem(t *testing.T) {
	fe := &gatedExtractor{gate: make(chan struct{})}
	svc := newService(t, fe)
	if _, err := svc.Upload(doc("a.png"), doc("b.png")); err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return svc.Snapshot().Processing == 1 })

	if !svc.Cancel() {
		t.Fatal("cancel should report an active run")
	}
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap := svc.Snapshot()
	if snap.Pending != 2 || snap.Processing != 0 || snap.Batch != constants.BatchStatusCancelled {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !errors.Is(svc.LastError(), context.Canceled) {
		t.Fatalf("last error = %v", svc.LastError())
	}
	if svc.Cancel() {
		t.Fatal("nothing should be running")
	}
}

func TestTriggerFollowsUpOnNewUploads(t *testing.T) {
	fe := &gatedExtractor{gate: make(chan struct{})}
	svc := newService(t, fe)
	if _, err := svc.Upload(doc("a.png")); err != nil {
		t.Fatal(err)
	}
	svc.Trigger(context.Background())
	waitFor(t, func() bool { return svc.Snapshot().Processing == 1 })

	if _, err := svc.Upload(doc("b.png")); err != nil {
		t.Fatal(err)
	}
	svc.Trigger(context.Background())
	close(fe.gate)

	waitFor(t, func() bool { return svc.Snapshot().Completed == 2 })
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestTriggerRerunIsTiedToActiveRun(t *testing.T) {
	fe := &gatedExtractor{gate: make(chan struct{})}
	svc := newService(t, fe)
	if _, err := svc.Upload(doc("a.png")); err != nil {
		t.Fatal(err)
	}

	// Hold the run slot without processing, then let Trigger race the end of that run.
	if _, err := svc.begin(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	svc.Trigger(context.Background())
	if !svc.finish(nil) {
		t.Fatal("follow-up request lost for the active run")
	}

	// With the slot free, Trigger must start a run instead of leaving a stale follow-up flag.
	svc.Trigger(context.Background())
	svc.mu.Lock()
	rerun, running := svc.rerun, svc.done != nil
	svc.mu.Unlock()
	if rerun || !running {
		t.Fatalf("rerun=%v running=%v, want a fresh run and no pending follow-up", rerun, running)
	}

	close(fe.gate)
	waitFor(t, func() bool { return svc.Snapshot().Completed == 1 })
	if err := svc.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestItemLookup(t *testing.T) {
	svc := newService(t, &gatedExtractor{})
	items, _ := svc.Upload(doc("a.png"))
	if got, err := svc.Item(items[0].ID); err != nil || got.Document.Filename != "a.png" {
		t.Fatalf("item = %+v, %v", got, err)
	}
	if _, err := svc.Item("missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
