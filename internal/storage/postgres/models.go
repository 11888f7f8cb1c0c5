package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"job_harvester/internal/domain"
)

type jobRow struct {
	ID                int64          `db:"id"`
	SourceURL         string         `db:"source_url"`
	JobTitle          string         `db:"job_title"`
	Company           string         `db:"company"`
	Location          string         `db:"location"`
	Salary            string         `db:"salary"`
	JobType           string         `db:"job_type"`
	Description       string         `db:"description"`
	Requirements      pq.StringArray `db:"requirements"`
	ContactInfo       string         `db:"contact_info"`
	ContactEmail      string         `db:"contact_email"`
	ContactPhone      string         `db:"contact_phone"`
	PostedDate        string         `db:"posted_date"`
	RawText           string         `db:"raw_text"`
	FacebookURL       string         `db:"facebook_url"`
	PostTime          string         `db:"post_time"`
	UserName          string         `db:"user_name"`
	UserID            string         `db:"user_id"`
	LikesCount        int            `db:"likes_count"`
	SharesCount       int            `db:"shares_count"`
	CommentsCount     int            `db:"comments_count"`
	TopReactionsCount int            `db:"top_reactions_count"`
	GroupTitle        string         `db:"group_title"`
	FacebookID        string         `db:"facebook_id"`
	Attachments       attachments    `db:"attachments"`
	OCRTexts          pq.StringArray `db:"ocr_texts"`
	Category          string         `db:"category"`
	GroupURL          string         `db:"group_url"`
	ScrapedAt         time.Time      `db:"scraped_at"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func toRow(r *domain.JobRecord) jobRow {
	reqs := r.Requirements
	if reqs == nil {
		reqs = []string{}
	}
	ocr := r.OCRTexts
	if ocr == nil {
		ocr = []string{}
	}
	return jobRow{
		SourceURL:         r.SourceURL,
		JobTitle:          r.Title,
		Company:           r.Company,
		Location:          r.Location,
		Salary:            r.Salary,
		JobType:           string(r.JobType),
		Description:       r.Description,
		Requirements:      reqs,
		ContactInfo:       r.ContactInfo,
		ContactEmail:      r.ContactEmail,
		ContactPhone:      r.ContactPhone,
		PostedDate:        r.PostedDate,
		RawText:           r.RawText,
		FacebookURL:       r.CanonicalURL,
		PostTime:          r.PostTime,
		UserName:          r.AuthorName,
		UserID:            r.AuthorID,
		LikesCount:        r.LikesCount,
		SharesCount:       r.SharesCount,
		CommentsCount:     r.CommentsCount,
		TopReactionsCount: r.ReactionsCount,
		GroupTitle:        r.GroupTitle,
		FacebookID:        r.PostID,
		Attachments:       attachments(r.Attachments),
		OCRTexts:          ocr,
		Category:          r.Category,
		GroupURL:          r.SourceID,
		ScrapedAt:         r.ScrapedAt,
	}
}

func (row jobRow) toDomain() domain.JobRecord {
	return domain.JobRecord{
		ID: strconv.FormatInt(row.ID, 10),
		ExtractedJob: domain.ExtractedJob{
			Title:        row.JobTitle,
			Company:      row.Company,
			Location:     row.Location,
			Salary:       row.Salary,
			JobType:      domain.JobType(row.JobType),
			Description:  row.Description,
			Requirements: []string(row.Requirements),
			ContactInfo:  row.ContactInfo,
			ContactEmail: row.ContactEmail,
			ContactPhone: row.ContactPhone,
			PostedDate:   row.PostedDate,
			SourceURL:    row.SourceURL,
			RawText:      row.RawText,
		},
		PostMetadata: domain.PostMetadata{
			CanonicalURL:   row.FacebookURL,
			PostTime:       row.PostTime,
			AuthorName:     row.UserName,
			AuthorID:       row.UserID,
			LikesCount:     row.LikesCount,
			SharesCount:    row.SharesCount,
			CommentsCount:  row.CommentsCount,
			ReactionsCount: row.TopReactionsCount,
			GroupTitle:     row.GroupTitle,
			PostID:         row.FacebookID,
			Attachments:    []domain.Attachment(row.Attachments),
			OCRTexts:       []string(row.OCRTexts),
		},
		Category:  row.Category,
		SourceID:  row.GroupURL,
		ScrapedAt: row.ScrapedAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// attachments is stored as JSONB.
type attachments []domain.Attachment

func (a attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *attachments) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan attachments: unsupported type %T", src)
	}
	return json.Unmarshal(data, (*[]domain.Attachment)(a))
}
