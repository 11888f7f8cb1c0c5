package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"job_harvester/internal/domain"
)

// SourceStore keeps per-source scrape bookkeeping.
type SourceStore struct {
	db *sqlx.DB
	tx *TransactionManager
}

func NewSourceStore(db *sqlx.DB, tx *TransactionManager) *SourceStore {
	return &SourceStore{db: db, tx: tx}
}

// RecordScrapes upserts the state of every source of one run in a single
// transaction.
func (s *SourceStore) RecordScrapes(ctx context.Context, scrapes []domain.SourceScrape) error {
	query := `
		INSERT INTO sources (url, title, last_scraped_at, posts_found, jobs_extracted, total_jobs_extracted, last_error)
		VALUES ($1, $2, $3, $4, $5, $5, $6)
		ON CONFLICT (url) DO UPDATE SET
			title = COALESCE(NULLIF(EXCLUDED.title, ''), sources.title),
			last_scraped_at = EXCLUDED.last_scraped_at,
			posts_found = EXCLUDED.posts_found,
			jobs_extracted = EXCLUDED.jobs_extracted,
			total_jobs_extracted = sources.total_jobs_extracted + EXCLUDED.jobs_extracted,
			last_error = EXCLUDED.last_error`

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)
		for _, sc := range scrapes {
			if _, err := exec.ExecContext(ctx, query,
				sc.URL,
				sc.Title,
				sc.ScrapedAt,
				sc.PostsFound,
				sc.JobsExtracted,
				sc.Error,
			); err != nil {
				return fmt.Errorf("record scrape %s: %w", sc.URL, err)
			}
		}
		return nil
	})
}

func (s *SourceStore) ListSources(ctx context.Context) ([]domain.SourceState, error) {
	query := `
		SELECT url, title, last_scraped_at, posts_found, jobs_extracted, total_jobs_extracted, last_error
		FROM sources
		ORDER BY last_scraped_at DESC, url`

	states := []domain.SourceState{}
	if err := s.db.SelectContext(ctx, &states, query); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return states, nil
}
