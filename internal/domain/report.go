package domain

import "time"

// BulkWriteResult is what a store reports for one bulk upsert call. It may be
// returned together with an error when the call failed after partial progress.
type BulkWriteResult struct {
	Inserted       int
	Updated        int
	CreatedIndexes []int
	Failures       []WriteError
}

// WriteError is a per-item failure; Index refers to the submitted slice.
type WriteError struct {
	Index   int
	Message string
}

// WriteFailure identifies a record that could not be written.
type WriteFailure struct {
	SourceURL string `json:"sourceUrl"`
	Message   string `json:"message"`
}

// BatchReport is the reconciled outcome of a persistence batch.
// Created+Updated+Failed always equals Total.
type BatchReport struct {
	Total    int            `json:"total"`
	Created  int            `json:"created"`
	Updated  int            `json:"updated"`
	Failed   int            `json:"failed"`
	Failures []WriteFailure `json:"failures,omitempty"`
}

// Saved returns the number of records written.
func (r BatchReport) Saved() int {
	return r.Created + r.Updated
}

// RunResult is returned for a single-source run.
type RunResult struct {
	RunID         string         `json:"runId"`
	SourceID      string         `json:"sourceId"`
	ItemsFound    int            `json:"itemsFound"`
	JobsExtracted int            `json:"jobsExtracted"`
	JobsSaved     int            `json:"jobsSaved"`
	SaveErrors    int            `json:"saveErrors"`
	Report        BatchReport    `json:"report"`
	Jobs          []ExtractedJob `json:"jobs"`
}

// SourceResult summarises one source inside a batch run.
type SourceResult struct {
	PostsFound    int    `json:"postsFound"`
	JobsExtracted int    `json:"jobsExtracted"`
	Error         string `json:"error,omitempty"`
}

// BatchRunResult is returned for a multi-source run.
type BatchRunResult struct {
	RunID              string                    `json:"runId"`
	TotalSources       int                       `json:"totalGroups"`
	PerSource          map[string]SourceResult   `json:"urlResults"`
	TotalPostsScraped  int                       `json:"totalPostsScraped"`
	TotalJobsExtracted int                       `json:"totalJobsExtracted"`
	TotalJobsSaved     int                       `json:"totalJobsSaved"`
	TotalErrors        int                       `json:"totalErrors"`
	ProcessingTimeMs   int64                     `json:"processingTimeMs"`
	Report             BatchReport               `json:"report"`
	JobsBySource       map[string][]ExtractedJob `json:"jobsByGroup"`
}

// SourceScrape is written to the source store after each run.
type SourceScrape struct {
	URL           string
	Title         string
	PostsFound    int
	JobsExtracted int
	Error         string
	ScrapedAt     time.Time
}

// JobEvent is emitted for every confirmed write.
type JobEvent struct {
	RunID   string
	Created bool
	Job     JobRecord
}
