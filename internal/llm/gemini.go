package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Image is inline image data sent alongside a prompt.
type Image struct {
	Data     []byte
	MIMEType string
}

type Config struct {
	APIKey            string
	BaseURL           string // empty uses the public endpoint
	Model             string
	Timeout           time.Duration
	Temperature       float32
	RequestsPerSecond float64
}

// Gemini generates JSON completions with the Gemini API. Calls are throttled
// when RequestsPerSecond is set and each call is bounded by Timeout.
type Gemini struct {
	client      *genai.Client
	model       string
	timeout     time.Duration
	temperature float32
	limiter     *rate.Limiter
	logger      *slog.Logger
}

func NewGemini(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Gemini{
		client:      client,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
		limiter:     limiter,
		logger:      logger.With("component", "gemini", "model", cfg.Model),
	}, nil
}

// Generate sends the prompt, plus the image when given, and returns the raw
// response text.
func (g *Gemini) Generate(ctx context.Context, prompt string, image *Image) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for rate limiter: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if image != nil {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	g.logger.Debug("generation completed",
		"with_image", image != nil,
		"response_length", len(text),
		"duration", time.Since(start),
	)

	return text, nil
}
