package service

import (
	"context"
	"errors"

	"job_harvester/internal/domain"
)

// FetchAll fetches every source in sequential groups of at most concurrency
// calls. Every id gets exactly one outcome. A failing source never affects
// its siblings. When ctx is cancelled the current group is abandoned, its
// in-flight calls finish in the background and their results are dropped.
func (p *Pipeline) FetchAll(ctx context.Context, sourceIDs []string, concurrency int, opts domain.FetchOptions) map[string]domain.SourceOutcome {
	ids := dedupe(sourceIDs)
	if concurrency < 1 {
		concurrency = 1
	}

	outcomes := make(map[string]domain.SourceOutcome, len(ids))

	type fetched struct {
		id      string
		outcome domain.SourceOutcome
	}

groups:
	for start := 0; start < len(ids); start += concurrency {
		if ctx.Err() != nil {
			break
		}

		group := ids[start:min(start+concurrency, len(ids))]
		results := make(chan fetched, len(group))

		for _, id := range group {
			go func(id string) {
				results <- fetched{id: id, outcome: p.fetchOne(ctx, id, opts)}
			}(id)
		}

		for range group {
			select {
			case r := <-results:
				outcomes[r.id] = r.outcome
			case <-ctx.Done():
				break groups
			}
		}
	}

	for _, id := range ids {
		if _, ok := outcomes[id]; ok {
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		outcomes[id] = domain.SourceOutcome{Err: &domain.FetchError{SourceID: id, Err: cause}}
	}

	return outcomes
}

func (p *Pipeline) fetchOne(ctx context.Context, id string, opts domain.FetchOptions) domain.SourceOutcome {
	posts, err := p.source.Fetch(ctx, id, opts)
	if err != nil {
		var fetchErr *domain.FetchError
		if !errors.As(err, &fetchErr) {
			err = &domain.FetchError{SourceID: id, Err: err}
		}
		p.logger.Warn("source fetch failed", "source", id, "error", err)
		return domain.SourceOutcome{Err: err}
	}
	if posts == nil {
		posts = []domain.Post{}
	}
	return domain.SourceOutcome{Posts: posts}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
