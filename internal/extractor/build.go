package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/export"
	"github.com/joseph-ayodele/hr-extractor/internal/ingest"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
	"github.com/joseph-ayodele/hr-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/hr-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/hr-extractor/internal/pipeline"
	"github.com/joseph-ayodele/hr-extractor/internal/preprocess"
	"github.com/joseph-ayodele/hr-extractor/internal/queue"
	"github.com/joseph-ayodele/hr-extractor/internal/status"
)

// NewFieldExtractor builds the configured provider client.
func NewFieldExtractor(cfg common.LLMConfig, logger *slog.Logger) (llm.FieldExtractor, error) {
	switch cfg.Provider {
	case common.ProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case common.ProviderOpenAI:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", common.ErrInvalidInput, cfg.Provider)
	}
}

// NewSink returns an S3 sink when a bucket is configured, else a local directory sink.
func NewSink(ctx context.Context, cfg common.ExportConfig) (export.Sink, error) {
	if cfg.S3Bucket == "" {
		return &export.LocalSink{Dir: cfg.Dir}, nil
	}
	client, err := export.NewS3Client(ctx, export.S3Config{
		Bucket:    cfg.S3Bucket,
		Prefix:    cfg.S3Prefix,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return export.NewS3Sink(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

// Build wires the queue, processor, exporter and ingestor from cfg.
// fe overrides the configured provider when non-nil.
func Build(ctx context.Context, cfg *common.Config, fe llm.FieldExtractor, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if fe == nil {
		var err error
		if fe, err = NewFieldExtractor(cfg.LLM, logger); err != nil {
			return nil, err
		}
	}
	sink, err := NewSink(ctx, cfg.Export)
	if err != nil {
		return nil, err
	}

	bus := status.NewEventBus(cfg.EventLog)
	q := queue.New(logger, queue.WithPublisher(bus))
	prep := preprocess.New(preprocess.Config{
		MaxDimension: cfg.Preprocess.MaxImageDimension,
		MaxBytes:     cfg.Preprocess.MaxPayloadBytes,
		JPEGQuality:  cfg.Preprocess.JPEGQuality,
	}, logger)
	proc := pipeline.NewProcessor(logger, q, fe,
		pipeline.WithPreparer(prep),
		pipeline.WithPacing(pipeline.Pacing{
			SuccessDelay:  cfg.Pacing.SuccessDelay,
			QuotaCooldown: cfg.Pacing.QuotaCooldown,
			FailureDelay:  cfg.Pacing.FailureDelay,
		}),
		pipeline.WithPublisher(bus),
	)

	return New(Deps{
		Queue:     q,
		Processor: proc,
		Exporter:  export.NewService(sink, cfg.Export.Filename, logger),
		Events:    bus,
		Ingestor:  ingest.NewFSIngestor(q, logger),
		Logger:    logger,
	}), nil
}
