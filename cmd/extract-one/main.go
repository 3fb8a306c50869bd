package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/extractor"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
	"github.com/joseph-ayodele/hr-extractor/internal/preprocess"
)

// extract-one runs a single document through preprocessing and the configured provider,
// printing the record and the raw model output. Useful when tuning prompts.
func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.LogLevel)

	if len(os.Args) < 2 {
		logger.Error("usage: extract-one <file> [times]")
		os.Exit(2)
	}
	path := os.Args[1]
	times := 1
	if len(os.Args) >= 3 {
		if n, err := strconv.Atoi(os.Args[2]); err == nil && n > 0 {
			times = n
		}
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}
	doc := entity.Document{
		Filename:  filepath.Base(path),
		MediaType: preprocess.DetectMediaType(path, data),
		Data:      data,
	}

	fe, err := extractor.NewFieldExtractor(cfg.LLM, logger)
	if err != nil {
		logger.Error("provider", "error", err)
		os.Exit(2)
	}
	prep := preprocess.New(preprocess.Config{
		MaxDimension: cfg.Preprocess.MaxImageDimension,
		MaxBytes:     cfg.Preprocess.MaxPayloadBytes,
		JPEGQuality:  cfg.Preprocess.JPEGQuality,
	}, logger)

	req, err := prep.Prepare(context.Background(), doc)
	if err != nil {
		logger.Error("prepare", "error", err)
		os.Exit(1)
	}

	failed := false
	for i := 1; i <= times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		start := time.Now()
		rec, raw, err := fe.ExtractFields(ctx, req)
		cancel()
		if err != nil {
			logger.Error("extract.run.error", "iter", i, "kind", llm.Classify(err), "error", err)
			failed = true
		} else {
			logger.Info("extract.run.ok", "iter", i, "elapsed_ms", time.Since(start).Milliseconds(),
				"missing", rec.MissingRequired())
			out, _ := json.MarshalIndent(map[string]any{"record": rec, "raw": string(raw)}, "", "  ")
			fmt.Println(string(out))
		}
		if i < times {
			time.Sleep(cfg.Pacing.SuccessDelay)
		}
	}
	if failed {
		os.Exit(1)
	}
}
