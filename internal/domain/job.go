package domain

import "time"

type JobType string

const (
	JobTypeFullTime JobType = "full-time"
	JobTypePartTime JobType = "part-time"
	JobTypeContract JobType = "contract"
	JobTypeRemote   JobType = "remote"
	JobTypeUnknown  JobType = ""
)

// ParseJobType maps free model output onto the closed set; anything else is unknown.
func ParseJobType(s string) JobType {
	switch t := JobType(s); t {
	case JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeRemote:
		return t
	default:
		return JobTypeUnknown
	}
}

// ExtractedJob is the structured result of extraction. Title is never empty.
type ExtractedJob struct {
	Title        string   `json:"jobTitle"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	Salary       string   `json:"salary"`
	JobType      JobType  `json:"jobType"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	ContactInfo  string   `json:"contactInfo"`
	ContactEmail string   `json:"contactEmail"`
	ContactPhone string   `json:"contactPhone"`
	PostedDate   string   `json:"postedDate"`
	SourceURL    string   `json:"sourceUrl"`
	RawText      string   `json:"rawText"`
}

// Extraction is one successfully extracted post, ready to persist.
type Extraction struct {
	Job      ExtractedJob
	Metadata PostMetadata
	SourceID string
}

// JobRecord is the persisted job. Exactly one exists per SourceURL.
type JobRecord struct {
	ID string `json:"id"`
	ExtractedJob
	PostMetadata
	Category  string    `json:"category"`
	SourceID  string    `json:"groupUrl"`
	ScrapedAt time.Time `json:"scrapedAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// JobQuery filters and paginates the read side.
type JobQuery struct {
	Filter   string
	Category string
	Search   string
	JobType  string
	Location string
	Page     int
	Limit    int
}

const (
	FilterNewest  = "newest"
	FilterOldest  = "oldest"
	FilterPopular = "popular"
)

// Offset returns the number of records to skip for the query's page.
func (q JobQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

type JobPage struct {
	Jobs       []JobRecord
	TotalCount int
}

// SourceState is the bookkeeping kept per scraped source.
type SourceState struct {
	URL           string    `json:"url" db:"url"`
	Title         string    `json:"title" db:"title"`
	LastScrapedAt time.Time `json:"lastScrapedAt" db:"last_scraped_at"`
	PostsFound    int       `json:"postsFound" db:"posts_found"`
	JobsExtracted int       `json:"jobsExtracted" db:"jobs_extracted"`
	TotalJobs     int64     `json:"totalJobsExtracted" db:"total_jobs_extracted"`
	LastError     string    `json:"lastError,omitempty" db:"last_error"`
}
