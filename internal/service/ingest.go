package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"job_harvester/internal/domain"
)

const noPostsMessage = "no posts retrieved (may be a private group)"

// RunSingleSource scrapes one source and persists the jobs found in it.
// It returns domain.ErrNoPosts when the source yields no posts.
func (p *Pipeline) RunSingleSource(ctx context.Context, sourceID string, limit int) (*domain.RunResult, error) {
	if limit == 0 {
		limit = p.cfg.DefaultLimit
	}
	if err := p.validateSingle(sourceID, limit); err != nil {
		return nil, err
	}

	ctx, cancel := p.withRunTimeout(ctx)
	defer cancel()

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "source", sourceID)
	logger.Info("starting single source run", "limit", limit)

	outcome := p.fetchOne(ctx, sourceID, domain.FetchOptions{MaxItems: limit})
	if outcome.Err != nil {
		p.recordScrapes(ctx, runID, []domain.SourceScrape{{
			URL:       sourceID,
			Error:     outcome.Err.Error(),
			ScrapedAt: p.now().UTC(),
		}})
		return nil, outcome.Err
	}

	if len(outcome.Posts) == 0 {
		p.recordScrapes(ctx, runID, []domain.SourceScrape{{
			URL:       sourceID,
			Error:     noPostsMessage,
			ScrapedAt: p.now().UTC(),
		}})
		return nil, fmt.Errorf("source %s: %w", sourceID, domain.ErrNoPosts)
	}

	sourced := make([]domain.SourcedPost, 0, len(outcome.Posts))
	for _, post := range outcome.Posts {
		sourced = append(sourced, domain.SourcedPost{Post: post, SourceID: sourceID})
	}

	extractions := p.ExtractAll(ctx, sourced, p.cfg.SingleBatchSize)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	report := p.Persist(ctx, runID, extractions)

	p.recordScrapes(ctx, runID, []domain.SourceScrape{{
		URL:           sourceID,
		Title:         outcome.Posts[0].Metadata.GroupTitle,
		PostsFound:    len(outcome.Posts),
		JobsExtracted: len(extractions),
		ScrapedAt:     p.now().UTC(),
	}})

	jobs := make([]domain.ExtractedJob, 0, len(extractions))
	for _, e := range extractions {
		jobs = append(jobs, e.Job)
	}

	logger.Info("single source run completed",
		"posts", len(outcome.Posts),
		"jobs_extracted", len(extractions),
		"created", report.Created,
		"updated", report.Updated,
		"failed", report.Failed,
	)

	return &domain.RunResult{
		RunID:         runID,
		SourceID:      sourceID,
		ItemsFound:    len(outcome.Posts),
		JobsExtracted: len(extractions),
		JobsSaved:     report.Saved(),
		SaveErrors:    report.Failed,
		Report:        report,
		Jobs:          jobs,
	}, nil
}

// RunBatch scrapes many sources with bounded concurrency and persists all jobs
// found in one bulk write. Source failures are reported per source and never
// fail the run. When no source yields a post the partial result is returned
// together with domain.ErrNoPosts.
func (p *Pipeline) RunBatch(ctx context.Context, sourceIDs []string, limit, concurrency int) (*domain.BatchRunResult, error) {
	start := p.now()

	if limit == 0 {
		limit = p.cfg.DefaultLimit
	}
	if err := p.validateBatch(sourceIDs, limit); err != nil {
		return nil, err
	}
	if concurrency == 0 {
		concurrency = p.cfg.DefaultConcurrency
	}
	if concurrency < 1 {
		return nil, &domain.ValidationError{Message: "concurrency must be at least 1"}
	}
	concurrency = min(concurrency, p.cfg.MaxConcurrency)

	ctx, cancel := p.withRunTimeout(ctx)
	defer cancel()

	ids := dedupe(sourceIDs)
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("starting batch run", "sources", len(ids), "limit", limit, "concurrency", concurrency)

	outcomes := p.FetchAll(ctx, ids, concurrency, domain.FetchOptions{MaxItems: limit})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	result := &domain.BatchRunResult{
		RunID:        runID,
		TotalSources: len(ids),
		PerSource:    make(map[string]domain.SourceResult, len(ids)),
		JobsBySource: make(map[string][]domain.ExtractedJob),
	}

	var posts []domain.SourcedPost
	for _, id := range ids {
		outcome := outcomes[id]
		switch {
		case outcome.Err != nil:
			result.PerSource[id] = domain.SourceResult{Error: outcome.Err.Error()}
		case len(outcome.Posts) == 0:
			result.PerSource[id] = domain.SourceResult{Error: noPostsMessage}
		default:
			result.PerSource[id] = domain.SourceResult{PostsFound: len(outcome.Posts)}
			for _, post := range outcome.Posts {
				posts = append(posts, domain.SourcedPost{Post: post, SourceID: id})
			}
		}
	}
	result.TotalPostsScraped = len(posts)

	if len(posts) == 0 {
		p.recordScrapes(ctx, runID, p.scrapesFor(ids, outcomes, result))
		result.ProcessingTimeMs = p.now().Sub(start).Milliseconds()
		logger.Warn("batch run found no posts", "sources", len(ids))
		return result, domain.ErrNoPosts
	}

	extractions := p.ExtractAll(ctx, posts, p.cfg.BatchSize)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	for _, e := range extractions {
		sr := result.PerSource[e.SourceID]
		sr.JobsExtracted++
		result.PerSource[e.SourceID] = sr
		result.JobsBySource[e.SourceID] = append(result.JobsBySource[e.SourceID], e.Job)
	}
	result.TotalJobsExtracted = len(extractions)

	report := p.Persist(ctx, runID, extractions)
	result.Report = report
	result.TotalJobsSaved = report.Saved()
	result.TotalErrors = report.Failed

	p.recordScrapes(ctx, runID, p.scrapesFor(ids, outcomes, result))
	result.ProcessingTimeMs = p.now().Sub(start).Milliseconds()

	logger.Info("batch run completed",
		"posts", result.TotalPostsScraped,
		"jobs_extracted", result.TotalJobsExtracted,
		"jobs_saved", result.TotalJobsSaved,
		"errors", result.TotalErrors,
		"duration_ms", result.ProcessingTimeMs,
	)

	return result, nil
}

func (p *Pipeline) scrapesFor(ids []string, outcomes map[string]domain.SourceOutcome, result *domain.BatchRunResult) []domain.SourceScrape {
	now := p.now().UTC()
	scrapes := make([]domain.SourceScrape, 0, len(ids))
	for _, id := range ids {
		sr := result.PerSource[id]
		scrape := domain.SourceScrape{
			URL:           id,
			PostsFound:    sr.PostsFound,
			JobsExtracted: sr.JobsExtracted,
			Error:         sr.Error,
			ScrapedAt:     now,
		}
		if posts := outcomes[id].Posts; len(posts) > 0 {
			scrape.Title = posts[0].Metadata.GroupTitle
		}
		scrapes = append(scrapes, scrape)
	}
	return scrapes
}

func (p *Pipeline) recordScrapes(ctx context.Context, runID string, scrapes []domain.SourceScrape) {
	if p.sources == nil || len(scrapes) == 0 {
		return
	}
	if err := p.sources.RecordScrapes(ctx, scrapes); err != nil {
		p.logger.Error("record source state failed", "run_id", runID, "error", err)
	}
}

func (p *Pipeline) withRunTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.RunTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.RunTimeout)
	}
	return context.WithCancel(ctx)
}
