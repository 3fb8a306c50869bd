// Package extractor is the application facade: it owns the document queue, the batch processor
// and the exporter, and is what the HTTP, gRPC and CLI surfaces call.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/export"
	"github.com/joseph-ayodele/hr-extractor/internal/ingest"
	"github.com/joseph-ayodele/hr-extractor/internal/pipeline"
	"github.com/joseph-ayodele/hr-extractor/internal/queue"
	"github.com/joseph-ayodele/hr-extractor/internal/status"
	"github.com/joseph-ayodele/hr-extractor/internal/telemetry"
)

// ErrBusy is returned by Start, RunSync and Clear while a batch is running.
var ErrBusy = fmt.Errorf("%w: %w", common.ErrConflict, pipeline.ErrBatchRunning)

type Deps struct {
	Queue     *queue.Queue
	Processor *pipeline.Processor
	Exporter  *export.Service
	Events    *status.EventBus
	Ingestor  ingest.Ingestor
	Logger    *slog.Logger
}

type Service struct {
	queue    *queue.Queue
	proc     *pipeline.Processor
	exporter *export.Service
	events   *status.EventBus
	ingestor ingest.Ingestor
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	rerun   bool
	lastErr error
}

func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Service{
		queue:    d.Queue,
		proc:     d.Processor,
		exporter: d.Exporter,
		events:   d.Events,
		ingestor: d.Ingestor,
		log:      d.Logger,
	}
}

// Upload appends documents to the queue as PENDING. Validation failures wrap common.ErrInvalidInput.
func (s *Service) Upload(docs ...entity.Document) ([]entity.QueueItem, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents", common.ErrInvalidInput)
	}
	items, err := s.queue.Enqueue(docs...)
	if err != nil {
		if errors.Is(err, queue.ErrEmptyDocument) || errors.Is(err, queue.ErrUnsupportedMediaType) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
		return nil, err
	}
	telemetry.DocumentsEnqueued.Add(float64(len(items)))
	return items, nil
}

// IngestPath reads one file from disk into the queue (deduplicated by content hash).
func (s *Service) IngestPath(ctx context.Context, path string) (ingest.IngestionResult, error) {
	if s.ingestor == nil {
		return ingest.IngestionResult{}, fmt.Errorf("%w: ingest not configured", common.ErrInternal)
	}
	res, err := s.ingestor.IngestPath(ctx, path)
	if err == nil && !res.Deduplicated {
		telemetry.DocumentsEnqueued.Inc()
	}
	return res, err
}

// IngestDirectory reads every supported file under root into the queue.
func (s *Service) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]ingest.IngestionResult, ingest.DirStats, error) {
	if s.ingestor == nil {
		return nil, ingest.DirStats{}, fmt.Errorf("%w: ingest not configured", common.ErrInternal)
	}
	res, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden)
	telemetry.DocumentsEnqueued.Add(float64(stats.Succeeded - stats.Deduplicated))
	return res, stats, err
}

// Start launches a batch run in the background. The run outlives parent's cancellation but keeps
// its values; use Cancel or Close to stop it.
func (s *Service) Start(parent context.Context) error {
	ctx, err := s.begin(context.WithoutCancel(parent), false)
	if err != nil {
		return err
	}
	go s.runAsync(ctx, parent)
	return nil
}

// Trigger starts a run, or schedules another one after the current run when new PENDING
// documents arrived while it was busy. It reports whether a new run started now.
// FAILED items alone never trigger a re-run.
func (s *Service) Trigger(parent context.Context) bool {
	ctx, err := s.begin(context.WithoutCancel(parent), true)
	if err != nil {
		return false
	}
	go s.runAsync(ctx, parent)
	return true
}

func (s *Service) runAsync(ctx context.Context, parent context.Context) {
	s.log.Info("extractor.run.start", "req_id", common.RequestIDFromContext(parent))
	err := s.proc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("extractor.run.failed", "error", err)
	}
	if s.finish(err) && s.hasPending() {
		s.log.Info("extractor.run.follow_up")
		s.Trigger(parent)
	}
}

// RunSync runs a batch in the caller's goroutine; ctx cancellation stops it.
func (s *Service) RunSync(ctx context.Context) error {
	runCtx, err := s.begin(ctx, false)
	if err != nil {
		return err
	}
	err = s.proc.Run(runCtx)
	s.finish(err)
	if errors.Is(err, pipeline.ErrBatchRunning) {
		return ErrBusy
	}
	return err
}

// begin claims the run slot. With orRerun set and a run active, it requests a follow-up run under
// the lock finish reads it with.
func (s *Service) begin(parent context.Context, orRerun bool) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil || s.proc.Running() {
		if orRerun && s.done != nil {
			s.rerun = true
		}
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	return ctx, nil
}

// finish releases the run handle and reports whether a follow-up run was requested.
func (s *Service) finish(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		close(s.done)
	}
	s.cancel, s.done = nil, nil
	s.lastErr = err
	rerun := s.rerun
	s.rerun = false
	return rerun
}

func (s *Service) hasPending() bool {
	for _, it := range s.queue.Items() {
		if it.Status == constants.ItemStatusPending {
			return true
		}
	}
	return false
}

// Cancel stops the active run, if any, and reports whether one was running.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.rerun = false
	s.log.Info("extractor.run.cancel_requested")
	return true
}

// Wait blocks until the active run (if any) finishes or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any active run and waits for it to release its item.
func (s *Service) Close(ctx context.Context) error {
	s.Cancel()
	return s.Wait(ctx)
}

// LastError returns the error of the most recent finished run (nil on success).
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Clear discards every item and resets the batch status to IDLE. Rejected while running.
func (s *Service) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return 0, ErrBusy
	}
	if err := s.proc.Reset(); err != nil {
		return 0, ErrBusy
	}
	return s.queue.Clear(), nil
}

func (s *Service) Snapshot() status.Snapshot {
	return status.Summarize(s.queue.Items(), s.proc.Status())
}

func (s *Service) Items() []entity.QueueItem {
	return s.queue.Items()
}

func (s *Service) Item(id string) (entity.QueueItem, error) {
	it, ok := s.queue.Get(id)
	if !ok {
		return entity.QueueItem{}, fmt.Errorf("%w: %w", common.ErrNotFound, queue.ErrItemNotFound)
	}
	return it, nil
}

// Events returns events with a sequence number greater than since.
func (s *Service) Events(since int64) []status.Event {
	if s.events == nil {
		return nil
	}
	return s.events.Since(since)
}

// ExportXLSX renders the workbook for download. No completed items wraps common.ErrNotFound.
func (s *Service) ExportXLSX() ([]byte, string, int, error) {
	bs, n, err := s.exporter.XLSX(s.queue.Items())
	if errors.Is(err, export.ErrNothingToExport) {
		return nil, "", 0, fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}
	if err != nil {
		return nil, "", 0, err
	}
	return bs, s.exporter.Filename(), n, nil
}

// Export writes the workbook to the configured sink.
func (s *Service) Export(ctx context.Context) (export.Result, error) {
	res, err := s.exporter.Export(ctx, s.queue.Items())
	if errors.Is(err, export.ErrNothingToExport) {
		return export.Result{}, fmt.Errorf("%w: %w", common.ErrNotFound, err)
	}
	return res, err
}
