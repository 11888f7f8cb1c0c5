package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"job_harvester/internal/domain"
)

// JobExtractor is implemented by Extractor and Cached.
type JobExtractor interface {
	Extract(ctx context.Context, post domain.Post, sourceID string) (*domain.ExtractedJob, error)
}

// Cache stores extraction outcomes. A found entry with a nil job records that
// the post is not a job posting.
type Cache interface {
	Get(ctx context.Context, key string) (job *domain.ExtractedJob, found bool, err error)
	Set(ctx context.Context, key string, job *domain.ExtractedJob) error
}

// resultExtractor reports whether the image of a post was used.
type resultExtractor interface {
	ExtractResult(ctx context.Context, post domain.Post, sourceID string) (Result, error)
}

// Cached skips the model for posts whose content was already extracted.
// Errors are never cached and cache failures fall through to the wrapped
// extractor. A "not a job" verdict reached without the post's image is not
// cached either, so the image is tried again on the next run.
type Cached struct {
	next   JobExtractor
	cache  Cache
	logger *slog.Logger
}

func NewCached(next JobExtractor, cache Cache, logger *slog.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		logger: logger.With("component", "extraction_cache"),
	}
}

func (c *Cached) Extract(ctx context.Context, post domain.Post, sourceID string) (*domain.ExtractedJob, error) {
	if !post.HasContent() {
		return nil, nil
	}

	key := CacheKey(post)

	job, found, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("cache lookup failed", "post_url", post.URL, "error", err)
	case found:
		c.logger.Debug("cache hit", "post_url", post.URL, "is_job", job != nil)
		return job, nil
	}

	res, err := c.extract(ctx, post, sourceID)
	if err != nil {
		return nil, err
	}
	job = res.Job

	if job == nil && res.ImageSkipped {
		c.logger.Debug("not caching verdict made without image", "post_url", post.URL)
		return nil, nil
	}

	if err := c.cache.Set(ctx, key, job); err != nil {
		c.logger.Warn("cache store failed", "post_url", post.URL, "error", err)
	}

	return job, nil
}

func (c *Cached) extract(ctx context.Context, post domain.Post, sourceID string) (Result, error) {
	if re, ok := c.next.(resultExtractor); ok {
		return re.ExtractResult(ctx, post, sourceID)
	}
	job, err := c.next.Extract(ctx, post, sourceID)
	return Result{Job: job}, err
}

// CacheKey identifies a post by the content the model sees.
func CacheKey(post domain.Post) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(post.URL)
	write(post.Text)
	write(post.ImageURL)
	for _, t := range post.OCRTexts {
		write(t)
	}
	return hex.EncodeToString(h.Sum(nil))
}
