package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/extractor"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of scanned registration forms (required)")
		out        = flag.String("out", "", "output directory for the workbook (defaults to the parent of --dir)")
		provider   = flag.String("provider", "", "gemini or openai (overrides LLM_PROVIDER)")
		model      = flag.String("model", "", "model name (overrides LLM_MODEL)")
		skipHidden = flag.Bool("skip-hidden", true, "skip dot files and directories")
		noPacing   = flag.Bool("no-pacing", false, "disable the waits between calls")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}
	if *out != "" {
		cfg.Export.Dir = *out
	} else if cfg.Export.S3Bucket == "" {
		cfg.Export.Dir = filepath.Dir(filepath.Clean(*dir))
	}
	if *noPacing {
		cfg.Pacing = common.PacingConfig{}
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := extractor.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build extractor", "error", err)
		os.Exit(1)
	}

	logger.Info("starting ingestion", "dir", *dir)
	_, stats, err := svc.IngestDirectory(ctx, *dir, *skipHidden)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	runErr := svc.RunSync(ctx)
	if runErr != nil {
		logger.Warn("batch stopped early", "error", runErr)
	}

	snap := svc.Snapshot()
	location := ""
	if snap.Completed > 0 {
		// export with a fresh context so an interrupted run still writes what it has
		res, err := svc.Export(context.WithoutCancel(ctx))
		if err != nil {
			logger.Error("failed to export", "error", err)
			os.Exit(1)
		}
		location = res.Location
	}

	bs, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Println(string(bs))
	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents: %d\n", snap.Total)
	fmt.Printf("- Completed: %d (needs review: %d)\n", snap.Completed, snap.NeedsReview)
	fmt.Printf("- Failed: %d\n", snap.Failed)
	if location != "" {
		fmt.Printf("- Output: %s\n", location)
	} else {
		fmt.Printf("- Output: none (no completed documents)\n")
	}

	if runErr != nil || snap.Failed > 0 {
		os.Exit(2)
	}
}
