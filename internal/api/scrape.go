package api

import (
	"errors"
	"maps"
	"net/http"
	"slices"

	"job_harvester/internal/domain"
)

type scrapeRequest struct {
	URL          string `json:"url"`
	ResultsLimit int    `json:"resultsLimit"`
}

type batchRequest struct {
	URLs         []string `json:"urls"`
	ResultsLimit int      `json:"resultsLimit"`
	Concurrency  int      `json:"concurrency"`
}

type batchSummary struct {
	TotalGroups        int   `json:"totalGroups"`
	TotalPostsScraped  int   `json:"totalPostsScraped"`
	TotalJobsExtracted int   `json:"totalJobsExtracted"`
	TotalJobsSaved     int   `json:"totalJobsSaved"`
	TotalErrors        int   `json:"totalErrors"`
	ProcessingTimeMs   int64 `json:"processingTimeMs"`
}

type batchResponse struct {
	RunID       string                           `json:"runId"`
	Summary     batchSummary                     `json:"summary"`
	URLResults  map[string]domain.SourceResult   `json:"urlResults"`
	JobsByGroup map[string][]domain.ExtractedJob `json:"jobsByGroup"`
	AllJobs     []domain.ExtractedJob            `json:"allJobs"`
	Report      domain.BatchReport               `json:"report"`
}

func (h *Handler) scrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ingester.RunSingleSource(r.Context(), req.URL, req.ResultsLimit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeValidationError(w, err)
		case errors.Is(err, domain.ErrNoPosts):
			writeError(w, http.StatusUnprocessableEntity,
				"No posts could be retrieved. This may be a private group. Only public groups can be scraped.")
		default:
			h.logger.Error("scrape failed", "url", req.URL, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) scrapeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.ingester.RunBatch(r.Context(), req.URLs, req.ResultsLimit, req.Concurrency)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeValidationError(w, err)
		case errors.Is(err, domain.ErrNoPosts) && res != nil:
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":      "No posts could be retrieved from any group",
				"urlResults": res.PerSource,
			})
		default:
			h.logger.Error("batch scrape failed", "urls", len(req.URLs), "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, toBatchResponse(res))
}

func writeValidationError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) && len(ve.InvalidSources) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":       ve.Message,
			"invalidUrls": ve.InvalidSources,
		})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func toBatchResponse(res *domain.BatchRunResult) batchResponse {
	all := make([]domain.ExtractedJob, 0, res.TotalJobsExtracted)
	for _, source := range slices.Sorted(maps.Keys(res.JobsBySource)) {
		all = append(all, res.JobsBySource[source]...)
	}
	return batchResponse{
		RunID: res.RunID,
		Summary: batchSummary{
			TotalGroups:        res.TotalSources,
			TotalPostsScraped:  res.TotalPostsScraped,
			TotalJobsExtracted: res.TotalJobsExtracted,
			TotalJobsSaved:     res.TotalJobsSaved,
			TotalErrors:        res.TotalErrors,
			ProcessingTimeMs:   res.ProcessingTimeMs,
		},
		URLResults:  res.PerSource,
		JobsByGroup: res.JobsBySource,
		AllJobs:     all,
		Report:      res.Report,
	}
}
