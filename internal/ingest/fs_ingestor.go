package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/preprocess"
)

// DefaultMaxFileBytes caps files read from disk.
const DefaultMaxFileBytes = 32 << 20

// FSIngestor reads documents from the local filesystem into the queue.
// Files whose SHA-256 is already queued are reported as deduplicated and not enqueued again.
type FSIngestor struct {
	Queue    Enqueuer
	MaxBytes int64
	Logger   *slog.Logger
}

func NewFSIngestor(q Enqueuer, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{Queue: q, MaxBytes: DefaultMaxFileBytes, Logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if !isSupported(abs) {
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	data, err := i.readFile(abs)
	if err != nil {
		return out, err
	}
	sum := sha256.Sum256(data)
	out.HashHex = hex.EncodeToString(sum[:])
	out.Bytes = len(data)
	out.MediaType = preprocess.DetectMediaType(abs, data)
	if out.MediaType == "" {
		return out, fmt.Errorf("unsupported content in %s", filepath.Base(abs))
	}

	if i.Queue.HasContentHash(out.HashHex) {
		out.Deduplicated = true
		i.Logger.Info("ingest.deduplicated", "path", abs, "hash", out.HashHex)
		return out, nil
	}

	items, err := i.Queue.Enqueue(entity.Document{
		Filename:    filepath.Base(abs),
		MediaType:   out.MediaType,
		Data:        data,
		ContentHash: out.HashHex,
	})
	if err != nil {
		return out, fmt.Errorf("enqueue: %w", err)
	}
	out.ItemID = items[0].ID
	return out, nil
}

func (i *FSIngestor) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.Logger.Warn("ingest.close_error", "path", path, "error", err)
		}
	}(f)

	limit := i.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file too large (>%d bytes)", limit)
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	root string,
	skipHidden bool,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !isSupported(path) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			i.Logger.Warn("ingest.file_failed", "path", path, "error", err)
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	i.Logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
