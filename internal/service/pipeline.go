package service

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"job_harvester/internal/config"
)

// Pipeline runs ingestion: fetch sources, extract jobs, persist them.
type Pipeline struct {
	source    Source
	extractor Extractor
	jobs      JobStore
	sources   SourceStore
	publisher Publisher
	logger    *slog.Logger
	cfg       config.PipelineConfig
	validate  *validator.Validate
	now       func() time.Time
}

// NewPipeline wires a pipeline. sources and publisher may be nil.
func NewPipeline(
	source Source,
	extractor Extractor,
	jobs JobStore,
	sources SourceStore,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.PipelineConfig,
) *Pipeline {
	return &Pipeline{
		source:    source,
		extractor: extractor,
		jobs:      jobs,
		sources:   sources,
		publisher: publisher,
		logger:    logger.With("component", "pipeline"),
		cfg:       cfg,
		validate:  newValidator(),
		now:       time.Now,
	}
}

// Ceiling is the longest a run over the given number of sources can take when
// every call runs to its timeout. batchSize is the extraction batch size of the
// run: BatchSize for RunBatch (even with one URL), SingleBatchSize for
// RunSingleSource. extractTimeout should cover the image download and the
// model call of one post.
func Ceiling(cfg config.PipelineConfig, sources, limit, concurrency, batchSize int, fetchTimeout, extractTimeout time.Duration) time.Duration {
	if sources <= 0 {
		return 0
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}

	groups := (sources + concurrency - 1) / concurrency
	posts := sources * limit
	batches := (posts + batchSize - 1) / batchSize
	if cfg.MaxExtractBatches > 0 {
		batches = min(batches, cfg.MaxExtractBatches)
	}

	ceiling := time.Duration(groups)*fetchTimeout + time.Duration(batches)*extractTimeout
	if cfg.RunTimeout > 0 {
		ceiling = min(ceiling, cfg.RunTimeout)
	}
	return ceiling
}
