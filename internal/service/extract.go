package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"job_harvester/internal/domain"
)

// ExtractAll runs the extractor over posts in sequential batches of batchSize.
// Posts that are not jobs or whose extraction fails are dropped. No batch is
// started once ctx is done or the configured batch cap is reached.
func (p *Pipeline) ExtractAll(ctx context.Context, posts []domain.SourcedPost, batchSize int) []domain.Extraction {
	if batchSize < 1 {
		batchSize = 1
	}

	var (
		out     []domain.Extraction
		batches int
	)

	for start := 0; start < len(posts); start += batchSize {
		if p.cfg.MaxExtractBatches > 0 && batches >= p.cfg.MaxExtractBatches {
			p.logger.Warn("extraction batch cap reached, dropping remaining posts",
				"max_batches", p.cfg.MaxExtractBatches,
				"dropped", len(posts)-start,
			)
			break
		}
		if err := ctx.Err(); err != nil {
			p.logger.Warn("extraction stopped", "error", err, "remaining", len(posts)-start)
			break
		}

		batch := posts[start:min(start+batchSize, len(posts))]
		found := make([]*domain.Extraction, len(batch))

		// goroutines record their own failures and return nil; Wait only joins.
		var g errgroup.Group
		for i, sp := range batch {
			g.Go(func() error {
				job, err := p.extractOne(ctx, sp)
				if err != nil {
					p.logger.Warn("extraction failed, dropping post",
						"source", sp.SourceID,
						"post_url", sp.Post.URL,
						"error", err,
					)
					return nil
				}
				if job != nil {
					found[i] = &domain.Extraction{Job: *job, Metadata: sp.Post.Metadata, SourceID: sp.SourceID}
				}
				return nil
			})
		}
		_ = g.Wait()

		for _, e := range found {
			if e != nil {
				out = append(out, *e)
			}
		}

		batches++
		p.logger.Debug("extraction batch done",
			"batch", batches,
			"of", (len(posts)+batchSize-1)/batchSize,
			"jobs", len(out),
		)
	}

	return out
}

func (p *Pipeline) extractOne(ctx context.Context, sp domain.SourcedPost) (job *domain.ExtractedJob, err error) {
	defer func() {
		if r := recover(); r != nil {
			job, err = nil, fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return p.extractor.Extract(ctx, sp.Post, sp.SourceID)
}
