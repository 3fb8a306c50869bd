package status

import (
	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
)

// Failure describes one failed document for display.
type Failure struct {
	ItemID   string              `json:"item_id"`
	Filename string              `json:"filename"`
	Kind     constants.ErrorKind `json:"kind"`
	Message  string              `json:"message"`
	Detail   string              `json:"detail,omitempty"`
}

// Snapshot is the aggregate progress view of a queue.
type Snapshot struct {
	Batch       constants.BatchStatus `json:"batch"`
	Total       int                   `json:"total"`
	Pending     int                   `json:"pending"`
	Processing  int                   `json:"processing"`
	Completed   int                   `json:"completed"`
	Failed      int                   `json:"failed"`
	NeedsReview int                   `json:"needs_review"`
	Failures    []Failure             `json:"failures,omitempty"`
}

// Summarize computes counts and per-item failure messages for a queue snapshot.
func Summarize(items []entity.QueueItem, batch constants.BatchStatus) Snapshot {
	s := Snapshot{Batch: batch, Total: len(items)}
	for _, it := range items {
		switch it.Status {
		case constants.ItemStatusPending:
			s.Pending++
		case constants.ItemStatusProcessing:
			s.Processing++
		case constants.ItemStatusCompleted:
			s.Completed++
			if it.NeedsReview {
				s.NeedsReview++
			}
		case constants.ItemStatusFailed:
			s.Failed++
			s.Failures = append(s.Failures, Failure{
				ItemID:   it.ID,
				Filename: it.Document.Filename,
				Kind:     it.ErrorKind,
				Message:  it.ErrorMessage(),
				Detail:   it.ErrorDetail,
			})
		}
	}
	return s
}
