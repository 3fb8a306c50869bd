package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/hr-extractor/internal/common"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/extractor"
	"github.com/joseph-ayodele/hr-extractor/internal/preprocess"
	"github.com/joseph-ayodele/hr-extractor/internal/telemetry"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPServer exposes the extractor over a JSON API.
type HTTPServer struct {
	svc            *extractor.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewHTTPServer(svc *extractor.Service, maxUploadBytes int64, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 64 << 20
	}
	return &HTTPServer{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Router builds the HTTP router.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleList)
		r.Delete("/", s.handleClear)
		r.Get("/{id}", s.handleGet)
	})
	r.Post("/ingest", s.handleIngest)
	r.Post("/batch", s.handleStart)
	r.Post("/batch/cancel", s.handleCancel)
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)
	r.Get("/export", s.handleDownload)
	r.Post("/export", s.handleExport)
	return r
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		log := s.logger.With("req_id", rid)
		ctx := common.WithLogger(common.WithRequestID(r.Context(), rid), log)
		w.Header().Set("X-Request-ID", rid)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		log.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

type uploadResponse struct {
	Items   []entity.QueueItem `json:"items"`
	Started bool               `json:"started"`
}

// handleUpload accepts multipart form files under any field name. ?start=true kicks off a run, or a
// follow-up run when one is already busy.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := common.LoggerFromContext(r.Context(), s.logger)
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, fmt.Errorf("%w: multipart form: %v", common.ErrInvalidInput, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var docs []entity.Document
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			d, err := readPart(fh)
			if err != nil {
				writeError(w, err)
				return
			}
			docs = append(docs, d)
		}
	}

	items, err := s.svc.Upload(docs...)
	if err != nil {
		log.Warn("http.upload.rejected", "files", len(docs), "error", err)
		writeError(w, err)
		return
	}

	resp := uploadResponse{Items: items}
	if start, _ := strconv.ParseBool(r.URL.Query().Get("start")); start {
		resp.Started = s.svc.Trigger(r.Context())
	}
	writeJSON(w, http.StatusCreated, resp)
}

func readPart(fh *multipart.FileHeader) (entity.Document, error) {
	if err := common.NewValidator().
		Field("filename", fh.Filename, common.Required, common.MaxLength(255)).
		Err(); err != nil {
		return entity.Document{}, err
	}
	f, err := fh.Open()
	if err != nil {
		return entity.Document{}, fmt.Errorf("open part %q: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return entity.Document{}, fmt.Errorf("read part %q: %w", fh.Filename, err)
	}

	mt := fh.Header.Get("Content-Type")
	if mt == "" || strings.HasPrefix(mt, "application/octet-stream") {
		mt = preprocess.DetectMediaType(fh.Filename, data)
	}
	return entity.Document{Filename: fh.Filename, MediaType: mt, Data: data}, nil
}

func (s *HTTPServer) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.svc.Items()})
}

func (s *HTTPServer) handleGet(w http.ResponseWriter, r *http.Request) {
	it, err := s.svc.Item(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *HTTPServer) handleClear(w http.ResponseWriter, _ *http.Request) {
	n, err := s.svc.Clear()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

type ingestRequest struct {
	Path       string `json:"path"`
	SkipHidden *bool  `json:"skip_hidden"`
	Start      bool   `json:"start"`
}

// handleIngest reads a file or directory on the daemon's filesystem into the queue.
func (s *HTTPServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json", common.ErrInvalidInput))
		return
	}
	if err := common.NewValidator().Field("path", req.Path, common.Required).Err(); err != nil {
		writeError(w, err)
		return
	}
	skipHidden := req.SkipHidden == nil || *req.SkipHidden

	results, stats, err := s.svc.IngestDirectory(r.Context(), req.Path, skipHidden)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
		return
	}
	if req.Start && stats.Succeeded > stats.Deduplicated {
		s.svc.Trigger(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "stats": stats})
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Start(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.svc.Snapshot())
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.svc.Cancel()})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Snapshot())
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: since must be a non-negative integer", common.ErrInvalidInput))
			return
		}
		since = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.svc.Events(since)})
}

func (s *HTTPServer) handleDownload(w http.ResponseWriter, _ *http.Request) {
	bs, name, rows, err := s.svc.ExportXLSX()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Export-Rows", strconv.Itoa(rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bs)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"location": res.Location, "rows": res.Rows, "bytes": res.Bytes})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
