package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNoPosts      = errors.New("no posts could be retrieved")
	ErrNotFound     = errors.New("not found")
)

// FetchError is returned when a source cannot be scraped.
type FetchError struct {
	SourceID string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch source %s: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a run before any network call is made.
type ValidationError struct {
	Message        string
	InvalidSources []string
}

func (e *ValidationError) Error() string {
	if len(e.InvalidSources) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.InvalidSources, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
