package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"job_harvester/internal/domain"
)

type jobDoc struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty"`
	SourceURL         string              `bson:"source_url"`
	JobTitle          string              `bson:"job_title"`
	Company           string              `bson:"company"`
	Location          string              `bson:"location"`
	Salary            string              `bson:"salary"`
	JobType           string              `bson:"job_type"`
	Description       string              `bson:"description"`
	Requirements      []string            `bson:"requirements"`
	ContactInfo       string              `bson:"contact_info"`
	ContactEmail      string              `bson:"contact_email"`
	ContactPhone      string              `bson:"contact_phone"`
	PostedDate        string              `bson:"posted_date"`
	RawText           string              `bson:"raw_text"`
	FacebookURL       string              `bson:"facebook_url"`
	PostTime          string              `bson:"post_time"`
	UserName          string              `bson:"user_name"`
	UserID            string              `bson:"user_id"`
	LikesCount        int                 `bson:"likes_count"`
	SharesCount       int                 `bson:"shares_count"`
	CommentsCount     int                 `bson:"comments_count"`
	TopReactionsCount int                 `bson:"top_reactions_count"`
	GroupTitle        string              `bson:"group_title"`
	FacebookID        string              `bson:"facebook_id"`
	Attachments       []domain.Attachment `bson:"attachments"`
	OCRTexts          []string            `bson:"ocr_texts"`
	Category          string              `bson:"category"`
	GroupURL          string              `bson:"group_url"`
	ScrapedAt         time.Time           `bson:"scraped_at"`
	CreatedAt         time.Time           `bson:"created_at,omitempty"`
	UpdatedAt         time.Time           `bson:"updated_at"`
}

// toDoc leaves _id and created_at empty so the document can be used as a
// $set payload.
func toDoc(r *domain.JobRecord, now time.Time) jobDoc {
	reqs := r.Requirements
	if reqs == nil {
		reqs = []string{}
	}
	ocr := r.OCRTexts
	if ocr == nil {
		ocr = []string{}
	}
	atts := r.Attachments
	if atts == nil {
		atts = []domain.Attachment{}
	}
	return jobDoc{
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
		Attachments:       atts,
		OCRTexts:          ocr,
		Category:          r.Category,
		GroupURL:          r.SourceID,
		ScrapedAt:         r.ScrapedAt,
		UpdatedAt:         now,
	}
}

func (d jobDoc) toDomain() domain.JobRecord {
	return domain.JobRecord{
		ID: d.ID.Hex(),
		ExtractedJob: domain.ExtractedJob{
			Title:        d.JobTitle,
			Company:      d.Company,
			Location:     d.Location,
			Salary:       d.Salary,
			JobType:      domain.JobType(d.JobType),
			Description:  d.Description,
			Requirements: d.Requirements,
			ContactInfo:  d.ContactInfo,
			ContactEmail: d.ContactEmail,
			ContactPhone: d.ContactPhone,
			PostedDate:   d.PostedDate,
			SourceURL:    d.SourceURL,
			RawText:      d.RawText,
		},
		PostMetadata: domain.PostMetadata{
			CanonicalURL:   d.FacebookURL,
			PostTime:       d.PostTime,
			AuthorName:     d.UserName,
			AuthorID:       d.UserID,
			LikesCount:     d.LikesCount,
			SharesCount:    d.SharesCount,
			CommentsCount:  d.CommentsCount,
			ReactionsCount: d.TopReactionsCount,
			GroupTitle:     d.GroupTitle,
			PostID:         d.FacebookID,
			Attachments:    d.Attachments,
			OCRTexts:       d.OCRTexts,
		},
		Category:  d.Category,
		SourceID:  d.GroupURL,
		ScrapedAt: d.ScrapedAt,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type sourceDoc struct {
	URL           string    `bson:"_id"`
	Title         string    `bson:"title"`
	LastScrapedAt time.Time `bson:"last_scraped_at"`
	PostsFound    int       `bson:"posts_found"`
	JobsExtracted int       `bson:"jobs_extracted"`
	TotalJobs     int64     `bson:"total_jobs_extracted"`
	LastError     string    `bson:"last_error"`
}

func (d sourceDoc) toDomain() domain.SourceState {
	return domain.SourceState{
		URL:           d.URL,
		Title:         d.Title,
		LastScrapedAt: d.LastScrapedAt,
		PostsFound:    d.PostsFound,
		JobsExtracted: d.JobsExtracted,
		TotalJobs:     d.TotalJobs,
		LastError:     d.LastError,
	}
}
