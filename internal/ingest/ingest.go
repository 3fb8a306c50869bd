package ingest

import (
	"context"

	"github.com/joseph-ayodele/hr-extractor/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string `json:"source_path"`
	ItemID       string `json:"item_id,omitempty"`
	Deduplicated bool   `json:"deduplicated"`
	HashHex      string `json:"hash,omitempty"`
	MediaType    string `json:"media_type,omitempty"`
	Bytes        int    `json:"bytes"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Enqueuer is the part of the document queue ingest writes to.
type Enqueuer interface {
	Enqueue(docs ...entity.Document) ([]entity.QueueItem, error)
	HasContentHash(hash string) bool
}

// Ingestor is the behavior the daemon and CLI depend on.
type Ingestor interface {
	// IngestPath a single path.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
