package constants

// ItemStatus is the canonical status of a queued document.
type ItemStatus string

// Stable values (surfaced as-is over the HTTP API).
const (
	ItemStatusPending    ItemStatus = "PENDING"    // waiting for a run
	ItemStatusProcessing ItemStatus = "PROCESSING" // gateway call in flight
	ItemStatusCompleted  ItemStatus = "COMPLETED"  // record extracted
	ItemStatusFailed     ItemStatus = "FAILED"     // eligible for retry on the next run
)

// Eligible reports whether an item with this status belongs in a run's work-list.
func (s ItemStatus) Eligible() bool {
	return s == ItemStatusPending || s == ItemStatusFailed
}

// BatchStatus is the aggregate state owned by the batch processor.
type BatchStatus string

const (
	BatchStatusIdle       BatchStatus = "IDLE"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusCancelled  BatchStatus = "CANCELLED"
)

// ErrorKind classifies a failed extraction.
type ErrorKind string

const (
	ErrorKindQuotaExceeded     ErrorKind = "QUOTA_EXCEEDED"
	ErrorKindExtractionFailure ErrorKind = "EXTRACTION_FAILURE"
)

// Message returns the user-facing text shown next to a failed document.
func (k ErrorKind) Message() string {
	switch k {
	case ErrorKindQuotaExceeded:
		return "Limite de Cota Atingido"
	case ErrorKindExtractionFailure:
		return "Falha na leitura"
	default:
		return "Erro desconhecido"
	}
}
