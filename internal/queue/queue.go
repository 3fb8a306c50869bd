package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/status"
)

var (
	ErrItemNotFound         = errors.New("queue item not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrEmptyDocument        = errors.New("document has no content")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// Queue is the in-memory, insertion-ordered collection of uploaded documents.
// Readers take snapshots; only the batch processor mutates item state during a run.
type Queue struct {
	mu     sync.RWMutex
	items  []*entity.QueueItem
	byID   map[string]*entity.QueueItem
	events status.Publisher
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Queue)

// WithPublisher sends a change event to p after every mutation.
func WithPublisher(p status.Publisher) Option {
	return func(q *Queue) {
		if p != nil {
			q.events = p
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

func New(logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		byID:   map[string]*entity.QueueItem{},
		events: status.Discard{},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue validates and appends documents as PENDING items, preserving argument order.
// Either every document is accepted or none is.
func (q *Queue) Enqueue(docs ...entity.Document) ([]entity.QueueItem, error) {
	prepared := make([]entity.Document, 0, len(docs))
	for _, d := range docs {
		if len(d.Data) == 0 {
			return nil, fmt.Errorf("%q: %w", d.Filename, ErrEmptyDocument)
		}
		mt, ok := constants.CanonicalMediaType(d.MediaType)
		if !ok {
			return nil, fmt.Errorf("%q (%s): %w", d.Filename, d.MediaType, ErrUnsupportedMediaType)
		}
		d.MediaType = mt
		if d.ContentHash == "" {
			sum := sha256.Sum256(d.Data)
			d.ContentHash = hex.EncodeToString(sum[:])
		}
		prepared = append(prepared, d)
	}

	q.mu.Lock()
	now := q.now()
	out := make([]entity.QueueItem, 0, len(prepared))
	for _, d := range prepared {
		it := &entity.QueueItem{
			ID:         uuid.New().String(),
			Document:   d,
			Status:     constants.ItemStatusPending,
			EnqueuedAt: now,
			UpdatedAt:  now,
		}
		q.items = append(q.items, it)
		q.byID[it.ID] = it
		out = append(out, it.Clone())
	}
	q.mu.Unlock()

	for _, it := range out {
		q.logger.Info("queue.enqueued", "item_id", it.ID, "filename", it.Document.Filename,
			"media_type", it.Document.MediaType, "bytes", it.Document.Size())
		q.publish(it, "")
	}
	return out, nil
}

// Items returns a snapshot of every item in queue order.
func (q *Queue) Items() []entity.QueueItem {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]entity.QueueItem, len(q.items))
	for i, it := range q.items {
		out[i] = it.Clone()
	}
	return out
}

// Get returns a snapshot of one item.
func (q *Queue) Get(id string) (entity.QueueItem, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	it, ok := q.byID[id]
	if !ok {
		return entity.QueueItem{}, false
	}
	return it.Clone(), true
}

func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// WorkList returns the IDs of PENDING and FAILED items in queue order.
func (q *Queue) WorkList() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var ids []string
	for _, it := range q.items {
		if it.Status.Eligible() {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// HasContentHash reports whether a document with the given sha256 hex is already queued.
func (q *Queue) HasContentHash(hash string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, it := range q.items {
		if it.Document.ContentHash == hash {
			return true
		}
	}
	return false
}

// MarkProcessing moves an eligible item to PROCESSING and clears any prior error.
func (q *Queue) MarkProcessing(id string) (entity.QueueItem, error) {
	return q.transition(id, func(it *entity.QueueItem) error {
		if !it.Status.Eligible() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, constants.ItemStatusProcessing)
		}
		it.Status = constants.ItemStatusProcessing
		it.ErrorKind = ""
		it.ErrorDetail = ""
		it.Attempts++
		return nil
	}, "")
}

// Complete stores the extracted record on a PROCESSING item.
func (q *Queue) Complete(id string, rec entity.EmployeeRecord) (entity.QueueItem, error) {
	return q.transition(id, func(it *entity.QueueItem) error {
		if it.Status != constants.ItemStatusProcessing {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, constants.ItemStatusCompleted)
		}
		r := rec
		it.Status = constants.ItemStatusCompleted
		it.Result = &r
		it.NeedsReview = len(rec.MissingRequired()) > 0
		return nil
	}, "")
}

// Fail records a classified failure on a PROCESSING item.
func (q *Queue) Fail(id string, kind constants.ErrorKind, detail string) (entity.QueueItem, error) {
	return q.transition(id, func(it *entity.QueueItem) error {
		if it.Status != constants.ItemStatusProcessing {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, constants.ItemStatusFailed)
		}
		it.Status = constants.ItemStatusFailed
		it.Result = nil
		it.NeedsReview = false
		it.ErrorKind = kind
		it.ErrorDetail = detail
		return nil
	}, kind.Message())
}

// Release returns a PROCESSING item to PENDING without recording an outcome (cancelled runs).
func (q *Queue) Release(id string) (entity.QueueItem, error) {
	return q.transition(id, func(it *entity.QueueItem) error {
		if it.Status != constants.ItemStatusProcessing {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, it.Status, constants.ItemStatusPending)
		}
		it.Status = constants.ItemStatusPending
		it.Attempts--
		return nil
	}, "released")
}

// Clear discards every item and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	q.byID = map[string]*entity.QueueItem{}
	q.mu.Unlock()

	q.logger.Info("queue.cleared", "items", n)
	q.events.Publish(status.Event{Type: status.EventTypeCleared, Message: fmt.Sprintf("%d items discarded", n)})
	return n
}

func (q *Queue) transition(id string, apply func(*entity.QueueItem) error, msg string) (entity.QueueItem, error) {
	q.mu.Lock()
	it, ok := q.byID[id]
	if !ok {
		q.mu.Unlock()
		return entity.QueueItem{}, fmt.Errorf("%s: %w", id, ErrItemNotFound)
	}
	if err := apply(it); err != nil {
		q.mu.Unlock()
		return entity.QueueItem{}, err
	}
	it.UpdatedAt = q.now()
	snap := it.Clone()
	q.mu.Unlock()

	q.publish(snap, msg)
	return snap, nil
}

func (q *Queue) publish(it entity.QueueItem, msg string) {
	q.events.Publish(status.Event{
		Type:       status.EventTypeItem,
		ItemID:     it.ID,
		Filename:   it.Document.Filename,
		ItemStatus: it.Status,
		ErrorKind:  it.ErrorKind,
		Message:    msg,
	})
}
