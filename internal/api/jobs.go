package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"job_harvester/internal/categorize"
	"job_harvester/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

type appliedFilters struct {
	Filter   string  `json:"filter"`
	Category *string `json:"category"`
	Search   *string `json:"search"`
	JobType  *string `json:"jobType"`
	Location *string `json:"location"`
}

type listJobsResponse struct {
	Jobs           []domain.JobRecord `json:"jobs"`
	Pagination     pagination         `json:"pagination"`
	AppliedFilters appliedFilters     `json:"appliedFilters"`
}

func parseJobQuery(r *http.Request) domain.JobQuery {
	v := r.URL.Query()

	q := domain.JobQuery{
		Filter:   v.Get("filter"),
		Category: v.Get("category"),
		Search:   strings.TrimSpace(v.Get("search")),
		JobType:  v.Get("jobType"),
		Location: strings.TrimSpace(v.Get("location")),
		Page:     1,
		Limit:    defaultPageSize,
	}
	switch q.Filter {
	case domain.FilterNewest, domain.FilterOldest, domain.FilterPopular:
	default:
		q.Filter = domain.FilterNewest
	}
	if p, err := strconv.Atoi(v.Get("page")); err == nil && p > 1 {
		q.Page = p
	}
	if l, err := strconv.Atoi(v.Get("limit")); err == nil && l > 0 {
		q.Limit = min(l, maxPageSize)
	}
	return q
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := parseJobQuery(r)

	page, err := h.jobs.ListJobs(r.Context(), q)
	if err != nil {
		h.logger.Error("list jobs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch jobs")
		return
	}

	writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs: page.Jobs,
		Pagination: pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			TotalCount: page.TotalCount,
			TotalPages: (page.TotalCount + q.Limit - 1) / q.Limit,
		},
		AppliedFilters: appliedFilters{
			Filter:   q.Filter,
			Category: optional(q.Category),
			Search:   optional(q.Search),
			JobType:  optional(q.JobType),
			Location: optional(q.Location),
		},
	})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := h.jobs.GetJob(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.logger.Error("get job failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch job")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.jobs.CategoryCounts(r.Context())
	if err != nil {
		h.logger.Error("category counts failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}

	cats, total := categorize.Summarize(counts)
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": cats,
		"totalCount": total,
	})
}

func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListSources(r.Context())
	if err != nil {
		h.logger.Error("list sources failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch sources")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// bulkJob is a job submitted by a client, usually one returned earlier by a
// scrape response.
type bulkJob struct {
	domain.ExtractedJob
	domain.PostMetadata
	GroupURL string `json:"groupUrl"`
}

type bulkRequest struct {
	Jobs     []bulkJob `json:"jobs"`
	GroupURL string    `json:"groupUrl"`
}

type bulkResponse struct {
	SavedCount    int                   `json:"savedCount"`
	UpsertedCount int                   `json:"upsertedCount"`
	ModifiedCount int                   `json:"modifiedCount"`
	ErrorCount    int                   `json:"errorCount"`
	Errors        []domain.WriteFailure `json:"errors"`
}

func (h *Handler) saveJobs(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Jobs) == 0 {
		writeError(w, http.StatusBadRequest, "jobs must be a non-empty array")
		return
	}

	var rejected []domain.WriteFailure
	items := make([]domain.Extraction, 0, len(req.Jobs))
	for _, j := range req.Jobs {
		if strings.TrimSpace(j.Title) == "" {
			rejected = append(rejected, domain.WriteFailure{SourceURL: j.SourceURL, Message: "missing job title"})
			continue
		}
		j.JobType = domain.ParseJobType(strings.ToLower(strings.TrimSpace(string(j.JobType))))

		source := j.GroupURL
		if source == "" {
			source = req.GroupURL
		}
		items = append(items, domain.Extraction{Job: j.ExtractedJob, Metadata: j.PostMetadata, SourceID: source})
	}

	if !slices.ContainsFunc(items, func(e domain.Extraction) bool { return e.Job.SourceURL != "" }) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "No valid jobs to save",
			"errorCount": len(req.Jobs),
		})
		return
	}

	report := h.ingester.Persist(r.Context(), uuid.NewString(), items)

	errs := append(rejected, report.Failures...)
	if errs == nil {
		errs = []domain.WriteFailure{}
	}
	writeJSON(w, http.StatusOK, bulkResponse{
		SavedCount:    report.Saved(),
		UpsertedCount: report.Created,
		ModifiedCount: report.Updated,
		ErrorCount:    report.Failed + len(rejected),
		Errors:        errs,
	})
}
