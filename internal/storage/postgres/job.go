package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"job_harvester/internal/domain"
)

const upsertJobQuery = `
	INSERT INTO jobs (
		source_url, job_title, company, location, salary, job_type, description,
		requirements, contact_info, contact_email, contact_phone, posted_date, raw_text,
		facebook_url, post_time, user_name, user_id, likes_count, shares_count,
		comments_count, top_reactions_count, group_title, facebook_id, attachments,
		ocr_texts, category, group_url, scraped_at
	) VALUES (
		:source_url, :job_title, :company, :location, :salary, :job_type, :description,
		:requirements, :contact_info, :contact_email, :contact_phone, :posted_date, :raw_text,
		:facebook_url, :post_time, :user_name, :user_id, :likes_count, :shares_count,
		:comments_count, :top_reactions_count, :group_title, :facebook_id, :attachments,
		:ocr_texts, :category, :group_url, :scraped_at
	)
	ON CONFLICT (source_url) DO UPDATE SET
		job_title = EXCLUDED.job_title,
		company = EXCLUDED.company,
		location = EXCLUDED.location,
		salary = EXCLUDED.salary,
		job_type = EXCLUDED.job_type,
		description = EXCLUDED.description,
		requirements = EXCLUDED.requirements,
		contact_info = EXCLUDED.contact_info,
		contact_email = EXCLUDED.contact_email,
		contact_phone = EXCLUDED.contact_phone,
		posted_date = EXCLUDED.posted_date,
		raw_text = EXCLUDED.raw_text,
		facebook_url = EXCLUDED.facebook_url,
		post_time = EXCLUDED.post_time,
		user_name = EXCLUDED.user_name,
		user_id = EXCLUDED.user_id,
		likes_count = EXCLUDED.likes_count,
		shares_count = EXCLUDED.shares_count,
		comments_count = EXCLUDED.comments_count,
		top_reactions_count = EXCLUDED.top_reactions_count,
		group_title = EXCLUDED.group_title,
		facebook_id = EXCLUDED.facebook_id,
		attachments = EXCLUDED.attachments,
		ocr_texts = EXCLUDED.ocr_texts,
		category = EXCLUDED.category,
		group_url = EXCLUDED.group_url,
		scraped_at = EXCLUDED.scraped_at,
		updated_at = NOW()
	RETURNING id, (xmax = 0) AS inserted`

const jobColumns = `
	id, source_url, job_title, company, location, salary, job_type, description,
	requirements, contact_info, contact_email, contact_phone, posted_date, raw_text,
	facebook_url, post_time, user_name, user_id, likes_count, shares_count,
	comments_count, top_reactions_count, group_title, facebook_id, attachments,
	ocr_texts, category, group_url, scraped_at, created_at, updated_at`

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

// BulkUpsert writes every record with its own statement so that one failing
// record does not affect the others. Per-record errors are returned in the
// result. When ctx is done the remaining records are not attempted and the
// result so far is returned with the error.
func (s *JobStore) BulkUpsert(ctx context.Context, records []domain.JobRecord) (*domain.BulkWriteResult, error) {
	res := &domain.BulkWriteResult{}
	exec := GetExecutor(ctx, s.db)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("bulk upsert interrupted after %d of %d records: %w", i, len(records), err)
		}

		inserted, err := s.upsert(ctx, exec, &records[i])
		if err != nil {
			res.Failures = append(res.Failures, domain.WriteError{Index: i, Message: err.Error()})
			continue
		}
		if inserted {
			res.Inserted++
			res.CreatedIndexes = append(res.CreatedIndexes, i)
		} else {
			res.Updated++
		}
	}

	if len(res.Failures) > 0 {
		return res, fmt.Errorf("bulk upsert: %d of %d records failed", len(res.Failures), len(records))
	}
	return res, nil
}

func (s *JobStore) upsert(ctx context.Context, exec sqlx.ExtContext, record *domain.JobRecord) (bool, error) {
	rows, err := sqlx.NamedQueryContext(ctx, exec, upsertJobQuery, toRow(record))
	if err != nil {
		return false, fmt.Errorf("upsert job %s: %w", record.SourceURL, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, fmt.Errorf("upsert job %s: %w", record.SourceURL, err)
		}
		return false, fmt.Errorf("upsert job %s: no row returned", record.SourceURL)
	}

	var (
		id       int64
		inserted bool
	)
	if err := rows.Scan(&id, &inserted); err != nil {
		return false, fmt.Errorf("scan upsert result: %w", err)
	}
	record.ID = strconv.FormatInt(id, 10)

	return inserted, rows.Err()
}

func (s *JobStore) ListJobs(ctx context.Context, q domain.JobQuery) (*domain.JobPage, error) {
	where, args := buildFilter(q)

	var total int
	countQuery := "SELECT COUNT(*) FROM jobs" + where
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	args = append(args, q.Limit, q.Offset())
	listQuery := fmt.Sprintf("SELECT %s FROM jobs%s ORDER BY %s LIMIT $%d OFFSET $%d",
		jobColumns, where, orderBy(q.Filter), len(args)-1, len(args))

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	page := &domain.JobPage{Jobs: make([]domain.JobRecord, 0, len(rows)), TotalCount: total}
	for _, row := range rows {
		page.Jobs = append(page.Jobs, row.toDomain())
	}
	return page, nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*domain.JobRecord, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var row jobRow
	err = s.db.GetContext(ctx, &row, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", numericID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	job := row.toDomain()
	return &job, nil
}

func (s *JobStore) CategoryCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT category, COUNT(*) AS count FROM jobs GROUP BY category"); err != nil {
		return nil, fmt.Errorf("count categories: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Category] = r.Count
	}
	return counts, nil
}

func buildFilter(q domain.JobQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.JobType != "" {
		add("job_type = $%d", q.JobType)
	}
	if q.Location != "" {
		add("location ILIKE $%d", "%"+escapeLike(q.Location)+"%")
	}
	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(job_title ILIKE $%[1]d OR company ILIKE $%[1]d OR description ILIKE $%[1]d OR location ILIKE $%[1]d)", n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(filter string) string {
	switch filter {
	case domain.FilterOldest:
		return "scraped_at ASC, id ASC"
	case domain.FilterPopular:
		return "(likes_count + comments_count + shares_count + top_reactions_count) DESC, scraped_at DESC, id DESC"
	default:
		return "scraped_at DESC, id DESC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
