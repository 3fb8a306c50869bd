// Package preprocess prepares a queued document for the extraction gateway: it settles the media
// type and shrinks oversized scans so the inline payload stays within provider limits.
package preprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
)

var ErrPayloadTooLarge = errors.New("payload exceeds inline size limit")

type Config struct {
	MaxDimension int   // longest image side in pixels; 0 disables downscaling
	MaxBytes     int64 // upper bound for the inline payload
	JPEGQuality  int
}

func DefaultConfig() Config {
	return Config{MaxDimension: 2048, MaxBytes: 20 << 20, JPEGQuality: 85}
}

type Preparer struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Preparer {
	def := DefaultConfig()
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preparer{cfg: cfg, log: logger}
}

// Prepare builds the gateway request for doc. Images whose longest side exceeds MaxDimension are
// re-encoded as JPEG; PDFs pass through untouched.
func (p *Preparer) Prepare(ctx context.Context, doc entity.Document) (llm.ExtractRequest, error) {
	if err := ctx.Err(); err != nil {
		return llm.ExtractRequest{}, err
	}
	mt, ok := constants.CanonicalMediaType(doc.MediaType)
	if !ok {
		mt = DetectMediaType(doc.Filename, doc.Data)
		if mt == "" {
			return llm.ExtractRequest{}, fmt.Errorf("%s: cannot determine media type", doc.Filename)
		}
	}
	req := llm.ExtractRequest{Data: doc.Data, MediaType: mt, Filename: doc.Filename}

	if constants.IsImage(mt) && p.cfg.MaxDimension > 0 {
		data, changed, err := p.downscale(doc.Data)
		if err != nil {
			// undecodable images are sent as-is
			p.log.Warn("preprocess.decode_failed", "filename", doc.Filename, "error", err)
		} else if changed {
			p.log.Info("preprocess.downscaled",
				"filename", doc.Filename,
				"bytes_before", len(doc.Data),
				"bytes_after", len(data),
			)
			req.Data = data
			req.MediaType = constants.MediaTypeJPEG
		}
	}

	if int64(len(req.Data)) > p.cfg.MaxBytes {
		return llm.ExtractRequest{}, fmt.Errorf("%s: %d bytes: %w", doc.Filename, len(req.Data), ErrPayloadTooLarge)
	}
	return req, nil
}

func (p *Preparer) downscale(data []byte) ([]byte, bool, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Width <= p.cfg.MaxDimension && cfg.Height <= p.cfg.MaxDimension {
		return data, false, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}
	img = imaging.Fit(img, p.cfg.MaxDimension, p.cfg.MaxDimension, imaging.Lanczos)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(p.cfg.JPEGQuality)); err != nil {
		return nil, false, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), true, nil
}

// DetectMediaType sniffs the content first and falls back to the file extension.
// It returns "" when the document is not a supported type.
func DetectMediaType(filename string, data []byte) string {
	if len(data) > 0 {
		if mt, ok := constants.CanonicalMediaType(http.DetectContentType(data)); ok {
			return mt
		}
	}
	return constants.MediaTypeForExt(filepath.Ext(filename))
}
