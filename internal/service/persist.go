package service

import (
	"context"
	"fmt"
	"time"

	"job_harvester/internal/categorize"
	"job_harvester/internal/domain"
)

const missingSourceURL = "missing source url"

// Persist upserts the extractions in one unordered bulk write and reconciles
// what the store reports into a BatchReport. Created+Updated+Failed always
// equals the number of items, including when the store call fails outright
// after partial progress.
func (p *Pipeline) Persist(ctx context.Context, runID string, items []domain.Extraction) domain.BatchReport {
	report := domain.BatchReport{Total: len(items)}
	if len(items) == 0 {
		return report
	}

	now := p.now().UTC()
	records := make([]domain.JobRecord, 0, len(items))
	var rejected []domain.WriteFailure

	for _, item := range items {
		if item.Job.SourceURL == "" {
			rejected = append(rejected, domain.WriteFailure{Message: missingSourceURL})
			continue
		}
		records = append(records, toRecord(item, now))
	}

	report.Failed = len(rejected)
	report.Failures = append(report.Failures, rejected...)

	if len(records) == 0 {
		report.Failures = p.boundFailures(report.Failures)
		return report
	}

	result, err := p.jobs.BulkUpsert(ctx, records)
	if err != nil {
		p.logger.Error("bulk upsert failed", "run_id", runID, "records", len(records), "error", err)
	}
	if result == nil {
		result = &domain.BulkWriteResult{}
	}

	created := min(max(result.Inserted, 0), len(records))
	updated := min(max(result.Updated, 0), len(records)-created)
	failed := len(records) - created - updated

	report.Created = created
	report.Updated = updated
	report.Failed += failed

	attributed := 0
	for _, we := range result.Failures {
		if attributed == failed {
			break
		}
		f := domain.WriteFailure{Message: we.Message}
		if we.Index >= 0 && we.Index < len(records) {
			f.SourceURL = records[we.Index].SourceURL
		}
		report.Failures = append(report.Failures, f)
		attributed++
	}

	unattributed := failed - attributed
	if unattributed > 0 {
		msg := fmt.Sprintf("%d writes not acknowledged by store", unattributed)
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		report.Failures = append(report.Failures, domain.WriteFailure{Message: msg})
	}

	report.Failures = p.boundFailures(report.Failures)

	p.publish(ctx, runID, records, result, unattributed == 0)

	return report
}

func toRecord(item domain.Extraction, now time.Time) domain.JobRecord {
	return domain.JobRecord{
		ExtractedJob: item.Job,
		PostMetadata: item.Metadata,
		Category:     categorize.Categorize(item.Job.Title, item.Job.Description),
		SourceID:     item.SourceID,
		ScrapedAt:    now,
	}
}

func (p *Pipeline) boundFailures(failures []domain.WriteFailure) []domain.WriteFailure {
	if limit := p.cfg.MaxFailureDetails; limit > 0 && len(failures) > limit {
		return failures[:limit]
	}
	return failures
}

// publish emits an event for every write the store confirmed. Updates are only
// known when every failure was attributed to an item.
func (p *Pipeline) publish(ctx context.Context, runID string, records []domain.JobRecord, result *domain.BulkWriteResult, complete bool) {
	if p.publisher == nil {
		return
	}

	created := make(map[int]bool, len(result.CreatedIndexes))
	for _, i := range result.CreatedIndexes {
		created[i] = true
	}
	failed := make(map[int]bool, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.Index] = true
	}

	published := 0
	for i, rec := range records {
		if failed[i] || (!created[i] && !complete) {
			continue
		}
		if err := p.publisher.Publish(ctx, domain.JobEvent{RunID: runID, Created: created[i], Job: rec}); err != nil {
			p.logger.Warn("publish job event failed", "run_id", runID, "source_url", rec.SourceURL, "error", err)
			continue
		}
		published++
	}

	p.logger.Debug("job events published", "run_id", runID, "count", published)
}
