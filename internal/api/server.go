package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"job_harvester/internal/domain"
)

const maxBodyBytes = 1 << 20

type Ingester interface {
	RunSingleSource(ctx context.Context, sourceID string, limit int) (*domain.RunResult, error)
	RunBatch(ctx context.Context, sourceIDs []string, limit, concurrency int) (*domain.BatchRunResult, error)
	Persist(ctx context.Context, runID string, items []domain.Extraction) domain.BatchReport
}

type JobReader interface {
	ListJobs(ctx context.Context, q domain.JobQuery) (*domain.JobPage, error)
	GetJob(ctx context.Context, id string) (*domain.JobRecord, error)
	CategoryCounts(ctx context.Context) (map[string]int, error)
}

type SourceReader interface {
	ListSources(ctx context.Context) ([]domain.SourceState, error)
}

type Handler struct {
	ingester Ingester
	jobs     JobReader
	sources  SourceReader
	logger   *slog.Logger
}

func NewHandler(ingester Ingester, jobs JobReader, sources SourceReader, logger *slog.Logger) *Handler {
	return &Handler{
		ingester: ingester,
		jobs:     jobs,
		sources:  sources,
		logger:   logger.With("component", "api"),
	}
}

// Routes returns the API mux wrapped in request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/scrape", h.scrape)
	mux.HandleFunc("POST /api/scrape/batch", h.scrapeBatch)
	mux.HandleFunc("GET /api/jobs", h.listJobs)
	mux.HandleFunc("POST /api/jobs/bulk", h.saveJobs)
	mux.HandleFunc("GET /api/jobs/categories", h.categories)
	mux.HandleFunc("GET /api/jobs/{id}", h.getJob)
	mux.HandleFunc("GET /api/sources", h.listSources)
	mux.HandleFunc("GET /api/health", h.health)

	return h.logRequests(mux)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
