package entity

import (
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
)

// Document is an uploaded payload. Data is owned by the queue item and never mutated.
type Document struct {
	Filename    string `json:"filename"`
	MediaType   string `json:"media_type"`
	Data        []byte `json:"-"`
	ContentHash string `json:"content_hash,omitempty"` // sha256 hex
}

// Size returns the payload length in bytes.
func (d Document) Size() int { return len(d.Data) }

// QueueItem is one uploaded document and its processing state.
type QueueItem struct {
	ID          string               `json:"id"`
	Document    Document             `json:"document"`
	Status      constants.ItemStatus `json:"status"`
	Result      *EmployeeRecord      `json:"result,omitempty"`
	ErrorKind   constants.ErrorKind  `json:"error_kind,omitempty"`
	ErrorDetail string               `json:"error_detail,omitempty"` // raw provider text
	NeedsReview bool                 `json:"needs_review"`
	Attempts    int                  `json:"attempts"`
	EnqueuedAt  time.Time            `json:"enqueued_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ErrorMessage is the user-facing message for a failed item, or "" otherwise.
func (i QueueItem) ErrorMessage() string {
	if i.Status != constants.ItemStatusFailed {
		return ""
	}
	return i.ErrorKind.Message()
}

// Clone copies the item so callers can't alias queue-owned state.
// Document.Data is shared; payload bytes are read-only for their whole lifetime.
func (i QueueItem) Clone() QueueItem {
	out := i
	if i.Result != nil {
		r := *i.Result
		out.Result = &r
	}
	return out
}
