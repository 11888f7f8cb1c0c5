package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"job_harvester/internal/domain"
	"job_harvester/internal/llm"
)

// Model is the extraction provider.
type Model interface {
	Generate(ctx context.Context, prompt string, image *llm.Image) (string, error)
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*llm.Image, error)
}

// Extractor turns one post into a job posting, or nil when the post is not one.
type Extractor struct {
	model  Model
	images ImageFetcher
	logger *slog.Logger
}

func New(model Model, images ImageFetcher, logger *slog.Logger) *Extractor {
	return &Extractor{
		model:  model,
		images: images,
		logger: logger.With("component", "extractor"),
	}
}

// Result is an extraction outcome together with how it was reached.
// ImageSkipped is set when the post has an image the model never saw, either
// because the download failed or because the model rejected it.
// ImageSkipped is set when the post had an image the model never saw.
type Result struct {
	Job          *domain.ExtractedJob
	ImageSkipped bool
}

// Extract returns nil, nil for posts that are not job postings and for model
// output that cannot be parsed. An error means the model call itself failed.
func (e *Extractor) Extract(ctx context.Context, post domain.Post, sourceID string) (*domain.ExtractedJob, error) {
	res, err := e.ExtractResult(ctx, post, sourceID)
	return res.Job, err
}

// ExtractResult is Extract with the path taken reported alongside the job.
func (e *Extractor) ExtractResult(ctx context.Context, post domain.Post, sourceID string) (Result, error) {
	if !post.HasContent() {
		return Result{}, nil
	}

	combined := combinedText(post.Text, post.OCRTexts)
	hasText := strings.TrimSpace(combined) != ""

	var (
		image   *llm.Image
		skipped bool
	)
	if post.ImageURL != "" {
		img, err := e.images.Fetch(ctx, post.ImageURL)
		if err != nil {
			e.logger.Debug("image fetch failed, using text",
				"post_url", post.URL,
				"image_url", post.ImageURL,
				"error", err,
			)
			skipped = true
		} else {
			image = img
		}
	}

	var (
		raw string
		err error
	)
	switch {
	case image != nil:
		raw, err = e.model.Generate(ctx, imagePrompt(combined), image)
		if err != nil && hasText && ctx.Err() == nil {
			e.logger.Warn("image extraction failed, retrying with text",
				"post_url", post.URL,
				"error", err,
			)
			skipped = true
			raw, err = e.model.Generate(ctx, textPrompt(combined), nil)
		}
	case hasText:
		raw, err = e.model.Generate(ctx, textPrompt(combined), nil)
	default:
		return Result{ImageSkipped: skipped}, nil
	}
	if err != nil {
		return Result{ImageSkipped: skipped}, fmt.Errorf("extract post %s: %w", post.URL, err)
	}

	job, err := parseResponse(raw)
	if err != nil {
		e.logger.Warn("discarding unparsable model response",
			"post_url", post.URL,
			"source", sourceID,
			"error", err,
		)
		return Result{ImageSkipped: skipped}, nil
	}
	if job == nil {
		return Result{ImageSkipped: skipped}, nil
	}

	job.PostedDate = post.PostedDate
	job.SourceURL = post.URL
	job.RawText = post.Text

	return Result{Job: job, ImageSkipped: skipped}, nil
}
