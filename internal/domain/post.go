package domain

// Post is a scraped group post after provider-specific fields have been
// normalized. It is produced by a source and read-only afterwards.
type Post struct {
	Text       string
	ImageURL   string
	OCRTexts   []string
	URL        string // canonical post URL, the persistence key
	PostedDate string
	Metadata   PostMetadata
}

// HasContent reports whether there is anything an extractor could work with.
func (p Post) HasContent() bool {
	if p.ImageURL != "" || p.Text != "" {
		return true
	}
	for _, t := range p.OCRTexts {
		if t != "" {
			return true
		}
	}
	return false
}

// PostMetadata is provenance projected from the provider payload.
type PostMetadata struct {
	CanonicalURL   string       `json:"facebookUrl"`
	PostTime       string       `json:"postTime"`
	AuthorName     string       `json:"userName"`
	AuthorID       string       `json:"userId"`
	LikesCount     int          `json:"likesCount"`
	SharesCount    int          `json:"sharesCount"`
	CommentsCount  int          `json:"commentsCount"`
	ReactionsCount int          `json:"topReactionsCount"`
	GroupTitle     string       `json:"groupTitle"`
	PostID         string       `json:"facebookId"`
	Attachments    []Attachment `json:"attachments"`
	OCRTexts       []string     `json:"ocrTexts"`
}

type Attachment struct {
	Thumbnail   string `json:"thumbnail" bson:"thumbnail"`
	Type        string `json:"type" bson:"type"`
	PhotoURL    string `json:"photoUrl" bson:"photo_url"`
	PhotoHeight int    `json:"photoHeight" bson:"photo_height"`
	PhotoWidth  int    `json:"photoWidth" bson:"photo_width"`
	URL         string `json:"url" bson:"url"`
	ID          string `json:"id" bson:"id"`
	OCRText     string `json:"ocrText" bson:"ocr_text"`
}

// FetchOptions bounds a single provider call.
type FetchOptions struct {
	MaxItems int
}

// SourcedPost tags a post with the source it was scraped from.
type SourcedPost struct {
	Post     Post
	SourceID string
}

// SourceOutcome is the per-source result of a fan-out: posts or an error, never both.
type SourceOutcome struct {
	Posts []Post
	Err   error
}
