package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
	"github.com/joseph-ayodele/hr-extractor/internal/queue"
	"github.com/joseph-ayodele/hr-extractor/internal/status"
	"github.com/joseph-ayodele/hr-extractor/internal/telemetry"
)

// ErrBatchRunning is returned when a run is requested while another one is in progress.
var ErrBatchRunning = errors.New("batch already running")

// Preparer turns a queued document into a gateway request (media type, downscaling).
type Preparer interface {
	Prepare(ctx context.Context, doc entity.Document) (llm.ExtractRequest, error)
}

type passthrough struct{}

func (passthrough) Prepare(ctx context.Context, doc entity.Document) (llm.ExtractRequest, error) {
	return llm.ExtractRequest{Data: doc.Data, MediaType: doc.MediaType, Filename: doc.Filename}, ctx.Err()
}

type outcome string

const (
	outcomeCompleted outcome = "completed"
	outcomeQuota     outcome = "quota_exceeded"
	outcomeFailure   outcome = "extraction_failure"
	outcomeReleased  outcome = "released"
)

// Processor drains the queue one document at a time against the extraction gateway,
// pacing calls so a rate-limited provider is not hammered.
type Processor struct {
	queue     *queue.Queue
	extractor llm.FieldExtractor
	preparer  Preparer
	pacing    Pacing
	sleep     Sleeper
	events    status.Publisher
	log       *slog.Logger

	mu      sync.Mutex
	running bool
	batch   constants.BatchStatus
}

type Option func(*Processor)

func WithPreparer(p Preparer) Option {
	return func(pr *Processor) {
		if p != nil {
			pr.preparer = p
		}
	}
}

func WithPacing(p Pacing) Option {
	return func(pr *Processor) { pr.pacing = p }
}

// WithSleeper replaces the context-aware timer used for pacing (tests).
func WithSleeper(s Sleeper) Option {
	return func(pr *Processor) {
		if s != nil {
			pr.sleep = s
		}
	}
}

func WithPublisher(pub status.Publisher) Option {
	return func(pr *Processor) {
		if pub != nil {
			pr.events = pub
		}
	}
}

func NewProcessor(logger *slog.Logger, q *queue.Queue, fe llm.FieldExtractor, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		queue:     q,
		extractor: fe,
		preparer:  passthrough{},
		pacing:    DefaultPacing(),
		sleep:     Sleep,
		events:    status.Discard{},
		log:       logger,
		batch:     constants.BatchStatusIdle,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Status returns the aggregate batch flag.
func (p *Processor) Status() constants.BatchStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batch
}

func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Run processes every PENDING and FAILED item, in queue order, strictly one at a time.
// COMPLETED items are never touched. Per-item failures are recorded on the item and never abort
// the run; only cancellation of ctx does, in which case ctx.Err() is returned.
func (p *Processor) Run(ctx context.Context) error {
	if !p.acquire() {
		return ErrBatchRunning
	}
	final := constants.BatchStatusCompleted
	defer func() { p.release(final) }()

	work := p.queue.WorkList()
	if len(work) == 0 {
		p.log.Info("batch.empty")
		final = constants.BatchStatusIdle
		return nil
	}

	start := time.Now()
	p.log.Info("batch.start", "items", len(work))
	counts := map[outcome]int{}

	for i, id := range work {
		if err := ctx.Err(); err != nil {
			final = constants.BatchStatusCancelled
			p.log.Warn("batch.cancelled", "remaining", len(work)-i, "error", err)
			return err
		}

		res, err := p.processItem(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				final = constants.BatchStatusCancelled
				p.log.Warn("batch.cancelled", "item_id", id, "remaining", len(work)-i, "error", ctxErr)
				return ctxErr
			}
			p.log.Warn("batch.item.skipped", "item_id", id, "error", err)
			continue
		}
		counts[res]++

		delay, reason := p.pacing.after(res, i == len(work)-1)
		if delay <= 0 {
			continue
		}
		p.log.Info("batch.pacing", "item_id", id, "reason", reason, "delay_ms", delay.Milliseconds())
		p.events.Publish(status.Event{Type: status.EventTypePacing, ItemID: id, Message: reason, DelayMs: delay.Milliseconds()})
		telemetry.PacingSeconds.WithLabelValues(reason).Add(delay.Seconds())
		if err := p.sleep(ctx, delay); err != nil {
			final = constants.BatchStatusCancelled
			p.log.Warn("batch.cancelled", "during", "pacing", "remaining", len(work)-i-1, "error", err)
			return err
		}
	}

	p.log.Info("batch.done",
		"items", len(work),
		"completed", counts[outcomeCompleted],
		"quota_exceeded", counts[outcomeQuota],
		"extraction_failure", counts[outcomeFailure],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// processItem runs the per-item state machine. A non-nil error means the item was not
// processed (not eligible anymore, or the run was cancelled and the item released).
func (p *Processor) processItem(ctx context.Context, id string) (outcome, error) {
	it, err := p.queue.MarkProcessing(id)
	if err != nil {
		return "", err
	}
	log := p.log.With("item_id", it.ID, "filename", it.Document.Filename)
	log.Info("batch.item.start", "media_type", it.Document.MediaType, "attempt", it.Attempts)

	req, err := p.preparer.Prepare(ctx, it.Document)
	if err != nil {
		if ctx.Err() != nil {
			return p.releaseItem(log, id, ctx.Err())
		}
		return p.failItem(log, id, constants.ErrorKindExtractionFailure, err)
	}

	start := time.Now()
	telemetry.InFlightGauge.Inc()
	rec, _, err := p.extractor.ExtractFields(ctx, req)
	telemetry.InFlightGauge.Dec()
	telemetry.GatewayLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return p.releaseItem(log, id, ctx.Err())
		}
		return p.failItem(log, id, llm.Classify(err), err)
	}

	done, err := p.queue.Complete(id, rec)
	if err != nil {
		return "", err
	}
	telemetry.ItemOutcomes.WithLabelValues(string(outcomeCompleted)).Inc()
	log.Info("batch.item.completed",
		"needs_review", done.NeedsReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return outcomeCompleted, nil
}

func (p *Processor) failItem(log *slog.Logger, id string, kind constants.ErrorKind, cause error) (outcome, error) {
	if _, err := p.queue.Fail(id, kind, cause.Error()); err != nil {
		return "", err
	}
	res := outcomeFailure
	if kind == constants.ErrorKindQuotaExceeded {
		res = outcomeQuota
	}
	telemetry.ItemOutcomes.WithLabelValues(string(res)).Inc()
	log.Error("batch.item.failed", "kind", kind, "error", cause)
	return res, nil
}

func (p *Processor) releaseItem(log *slog.Logger, id string, cause error) (outcome, error) {
	if _, err := p.queue.Release(id); err != nil {
		log.Error("batch.item.release_failed", "error", err)
	}
	telemetry.ItemOutcomes.WithLabelValues(string(outcomeReleased)).Inc()
	log.Warn("batch.item.released", "error", cause)
	return outcomeReleased, cause
}

func (p *Processor) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	p.batch = constants.BatchStatusProcessing
	p.events.Publish(status.Event{Type: status.EventTypeBatch, BatchStatus: p.batch})
	return true
}

func (p *Processor) release(final constants.BatchStatus) {
	p.mu.Lock()
	p.running = false
	p.batch = final
	p.mu.Unlock()

	telemetry.BatchRuns.WithLabelValues(string(final)).Inc()
	p.events.Publish(status.Event{Type: status.EventTypeBatch, BatchStatus: final})
}

// Reset returns the aggregate flag to IDLE after the queue is cleared.
func (p *Processor) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrBatchRunning
	}
	p.batch = constants.BatchStatusIdle
	return nil
}
