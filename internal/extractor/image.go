package extractor

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"job_harvester/internal/llm"
)

const defaultImageMIME = "image/jpeg"

// HTTPImageFetcher downloads post images for inline submission to the model.
type HTTPImageFetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	return &HTTPImageFetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
	}
}

// Fetch returns an error for network failures, non-2xx responses, bodies that
// are not images and images larger than the configured limit.
func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) (*llm.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "JobHarvester/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	mimeType, err := mediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	return &llm.Image{
		Data:     data,
		MIMEType: mimeType,
	}, nil
}

// mediaType accepts image/* types. An absent or generic binary type is
// assumed to be a JPEG.
func mediaType(contentType string) (string, error) {
	if contentType == "" {
		return defaultImageMIME, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt == "" {
		return defaultImageMIME, nil
	}
	mt = strings.ToLower(mt)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return mt, nil
	case mt == "application/octet-stream":
		return defaultImageMIME, nil
	default:
		return "", fmt.Errorf("not an image: content type %s", mt)
	}
}
