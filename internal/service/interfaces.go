package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"job_harvester/internal/domain"
)

type Source interface {
	Fetch(ctx context.Context, sourceID string, opts domain.FetchOptions) ([]domain.Post, error)
}

type Extractor interface {
	Extract(ctx context.Context, post domain.Post, sourceID string) (*domain.ExtractedJob, error)
}

// JobStore performs an unordered bulk upsert keyed by source URL. On failure
// it may return a non-nil result describing the progress made before the error.
type JobStore interface {
	BulkUpsert(ctx context.Context, records []domain.JobRecord) (*domain.BulkWriteResult, error)
}

type SourceStore interface {
	RecordScrapes(ctx context.Context, scrapes []domain.SourceScrape) error
}

type Publisher interface {
	Publish(ctx context.Context, event domain.JobEvent) error
	Close() error
}
