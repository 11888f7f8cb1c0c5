package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"job_harvester/internal/domain"
)

var groupHosts = map[string]bool{
	"facebook.com":     true,
	"www.facebook.com": true,
	"m.facebook.com":   true,
	"web.facebook.com": true,
}

// IsGroupURL reports whether s is a Facebook group URL.
func IsGroupURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return groupHosts[strings.ToLower(u.Hostname())] && strings.Contains(u.Path, "/groups/")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("groupurl", func(fl validator.FieldLevel) bool {
		return IsGroupURL(fl.Field().String())
	})
	return v
}

type batchRequest struct {
	SourceIDs []string `validate:"required,dive,groupurl"`
}

func (p *Pipeline) validateSingle(sourceID string, limit int) error {
	if strings.TrimSpace(sourceID) == "" {
		return &domain.ValidationError{Message: "source url is required"}
	}
	if err := p.validate.Var(sourceID, "groupurl"); err != nil {
		return &domain.ValidationError{
			Message:        "invalid Facebook group URL: must be on facebook.com and contain /groups/",
			InvalidSources: []string{sourceID},
		}
	}
	return p.validateLimit(limit)
}

func (p *Pipeline) validateBatch(sourceIDs []string, limit int) error {
	if len(sourceIDs) == 0 {
		return &domain.ValidationError{Message: "at least one source url is required"}
	}
	if len(sourceIDs) > p.cfg.MaxSources {
		return &domain.ValidationError{
			Message: fmt.Sprintf("at most %d source urls are allowed per batch", p.cfg.MaxSources),
		}
	}

	if err := p.validate.Struct(batchRequest{SourceIDs: sourceIDs}); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate batch: %w", err)
		}
		invalid := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			if s, ok := fe.Value().(string); ok {
				invalid = append(invalid, s)
			}
		}
		return &domain.ValidationError{
			Message:        "invalid Facebook group URLs",
			InvalidSources: invalid,
		}
	}

	return p.validateLimit(limit)
}

func (p *Pipeline) validateLimit(limit int) error {
	if limit < 1 || limit > p.cfg.MaxLimit {
		return &domain.ValidationError{
			Message: fmt.Sprintf("results limit must be between 1 and %d", p.cfg.MaxLimit),
		}
	}
	return nil
}
