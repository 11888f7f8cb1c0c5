package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"job_harvester/internal/domain"
)

const SourceName = "Apify Facebook Groups"

// Config holds Apify source configuration.
type Config struct {
	Token             string
	BaseURL           string
	ActorID           string
	Timeout           time.Duration
	ViewOption        string
	MaxRequestRetries int
}

// Source fetches group posts through the Apify actor API. It makes exactly one
// provider call per Fetch; retries are left to the actor itself.
type Source struct {
	httpClient        *http.Client
	token             string
	baseURL           string
	actorID           string
	viewOption        string
	maxRequestRetries int
	logger            *slog.Logger
}

// New creates a new Apify source.
func New(cfg Config, logger *slog.Logger) *Source {
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		token:             cfg.Token,
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		actorID:           cfg.ActorID,
		viewOption:        cfg.ViewOption,
		maxRequestRetries: cfg.MaxRequestRetries,
		logger:            logger.With("component", "apify"),
	}
}

// Name returns human-readable name.
func (s *Source) Name() string {
	return SourceName
}

// Fetch runs the actor for one group and returns its posts in provider order.
func (s *Source) Fetch(ctx context.Context, sourceID string, opts domain.FetchOptions) ([]domain.Post, error) {
	input := RunInput{
		StartURLs:         []StartURL{{URL: sourceID}},
		ResultsLimit:      opts.MaxItems,
		ViewOption:        s.viewOption,
		MaxComments:       0,
		MaxRequestRetries: s.maxRequestRetries,
	}

	s.logger.Debug("starting actor run", "source", sourceID, "limit", opts.MaxItems)

	items, err := s.doRequest(ctx, input)
	if err != nil {
		return nil, &domain.FetchError{SourceID: sourceID, Err: err}
	}

	s.logger.Debug("actor run finished", "source", sourceID, "items", len(items))

	return transform(items), nil
}

func (s *Source) doRequest(ctx context.Context, input RunInput) ([]Item, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items", s.baseURL, url.PathEscape(s.actorID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("User-Agent", "JobHarvester/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status: %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return items, nil
}

func transform(items []Item) []domain.Post {
	posts := make([]domain.Post, 0, len(items))
	for _, it := range items {
		posts = append(posts, toPost(it))
	}
	return posts
}

func toPost(it Item) domain.Post {
	ocr := ocrTexts(it)
	return domain.Post{
		Text:       firstNonEmpty(it.Text, it.Message),
		ImageURL:   imageURL(it),
		OCRTexts:   ocr,
		URL:        firstNonEmpty(it.URL, it.PostURL),
		PostedDate: firstNonEmpty(string(it.Date), string(it.Time), string(it.Timestamp)),
		Metadata: domain.PostMetadata{
			CanonicalURL:   firstNonEmpty(it.FacebookURL, it.InputURL),
			PostTime:       firstNonEmpty(string(it.Time), string(it.Date), string(it.Timestamp)),
			AuthorName:     firstNonEmpty(userName(it.User), string(it.Author)),
			AuthorID:       userID(it.User),
			LikesCount:     int(it.LikesCount),
			SharesCount:    int(it.SharesCount),
			CommentsCount:  int(it.CommentsCount),
			ReactionsCount: int(it.TopReactionsCount),
			GroupTitle:     it.GroupTitle,
			PostID:         firstNonEmpty(string(it.FacebookID), string(it.ID)),
			Attachments:    attachments(it.Attachments),
			OCRTexts:       ocr,
		},
	}
}

// imageURL prefers attachments, then imageUrls, then media.
func imageURL(it Item) string {
	if len(it.Attachments) > 0 {
		a := it.Attachments[0]
		return firstNonEmpty(a.PhotoImage.uri(), a.Thumbnail)
	}
	if len(it.ImageURLs) > 0 {
		return it.ImageURLs[0]
	}
	if len(it.Media) > 0 {
		m := it.Media[0]
		return firstNonEmpty(m.PhotoImage.uri(), m.Thumbnail)
	}
	return ""
}

func ocrTexts(it Item) []string {
	var texts []string
	for _, a := range it.Attachments {
		if a.OCRText != "" {
			texts = append(texts, a.OCRText)
		}
	}
	return texts
}

func attachments(in []Attachment) []domain.Attachment {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		att := domain.Attachment{
			Thumbnail: a.Thumbnail,
			Type:      a.Typename,
			URL:       a.URL,
			ID:        string(a.ID),
			OCRText:   a.OCRText,
		}
		if a.PhotoImage != nil {
			att.PhotoURL = a.PhotoImage.URI
			att.PhotoHeight = int(a.PhotoImage.Height)
			att.PhotoWidth = int(a.PhotoImage.Width)
		}
		out = append(out, att)
	}
	return out
}

func userName(u *User) string {
	if u == nil {
		return ""
	}
	return u.Name
}

func userID(u *User) string {
	if u == nil {
		return ""
	}
	return string(u.ID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
