package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/telemetry"
)

// ErrNothingToExport is returned when no item is COMPLETED; no workbook is produced.
var ErrNothingToExport = errors.New("no completed items to export")

// Result describes a written workbook.
type Result struct {
	Location string
	Rows     int
	Bytes    int
}

// Service renders completed queue items and hands the workbook to a sink.
type Service struct {
	sink     Sink
	filename string
	logger   *slog.Logger
}

func NewService(sink Sink, filename string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if filename == "" {
		filename = constants.ExportFilename
	}
	return &Service{sink: sink, filename: filename, logger: logger}
}

func (s *Service) Filename() string { return s.filename }

// XLSX returns the workbook bytes and the number of data rows.
func (s *Service) XLSX(items []entity.QueueItem) ([]byte, int, error) {
	rows := Project(items)
	if rows.Len() == 0 {
		return nil, 0, ErrNothingToExport
	}
	bs, err := RenderXLSX(rows)
	if err != nil {
		return nil, 0, err
	}
	return bs, rows.Len(), nil
}

// Export renders items and writes the workbook to the configured sink.
func (s *Service) Export(ctx context.Context, items []entity.QueueItem) (Result, error) {
	start := time.Now()
	if s.sink == nil {
		return Result{}, fmt.Errorf("export: no sink configured")
	}
	bs, n, err := s.XLSX(items)
	if err != nil {
		return Result{}, err
	}
	loc, err := s.sink.Write(ctx, s.filename, bs)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "sink", s.sink.Name(), "error", err)
		return Result{}, fmt.Errorf("export to %s: %w", s.sink.Name(), err)
	}
	telemetry.ExportsTotal.WithLabelValues(s.sink.Name()).Inc()

	s.logger.Info("export.xlsx.ok",
		"sink", s.sink.Name(),
		"location", loc,
		"rows", n,
		"bytes", len(bs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Location: loc, Rows: n, Bytes: len(bs)}, nil
}
