package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/extractor"
	"github.com/joseph-ayodele/hr-extractor/internal/ingest"
	"github.com/joseph-ayodele/hr-extractor/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger.Info("config.loaded", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := extractor.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to build extractor", "error", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPServer(svc, cfg.Server.MaxUploadBytes, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv, hs := server.NewGRPCServer(svc, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http.serving", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("grpc listen", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			logger.Info("grpc.serving", "addr", cfg.Server.GRPCAddr)
			return grpcSrv.Serve(lis)
		})
	}

	if cfg.Ingest.WatchDir != "" {
		g.Go(func() error { return watchInbox(gctx, cfg.Ingest, svc, logger) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := svc.Close(shutdownCtx); err != nil {
			logger.Warn("batch did not stop in time", "error", err)
		}
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

// watchInbox ingests documents dropped into the watch directory and, with AutoRun, starts a batch.
func watchInbox(ctx context.Context, cfg common.IngestConfig, svc *extractor.Service, logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.WatchDir},
		InitialScan: true,
		SkipHidden:  cfg.SkipHidden,
		Debounce:    cfg.Debounce,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watch.started", "dir", cfg.WatchDir, "autorun", cfg.AutoRun)

	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			res, err := svc.IngestPath(ctx, p)
			if err != nil {
				logger.Warn("watch.ingest.failed", "path", p, "error", err)
				continue
			}
			if res.Deduplicated {
				continue
			}
			if cfg.AutoRun {
				svc.Trigger(ctx)
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watch.error", "error", err)
		}
	}
}
