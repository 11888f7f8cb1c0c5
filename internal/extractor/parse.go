package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"job_harvester/internal/domain"
)

const nullSentinel = "null"

var codeFence = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

var errMalformed = errors.New("malformed model response")

// modelJob is the shape the model is asked for. Fields are lenient because
// models occasionally answer with numbers or a single string where a list was
// requested.
type modelJob struct {
	Title        looseString `json:"jobTitle"`
	Company      looseString `json:"company"`
	Location     looseString `json:"location"`
	Salary       looseString `json:"salary"`
	JobType      looseString `json:"jobType"`
	Description  looseString `json:"description"`
	Requirements looseList   `json:"requirements"`
	ContactInfo  looseString `json:"contactInfo"`
	ContactEmail looseString `json:"contactEmail"`
	ContactPhone looseString `json:"contactPhone"`
}

// parseResponse turns raw model output into a job. It returns nil, nil for
// the null sentinel and for results without a title, and errMalformed when
// the output is not a JSON object.
func parseResponse(raw string) (*domain.ExtractedJob, error) {
	body := unwrap(raw)
	if body == "" || strings.EqualFold(body, nullSentinel) {
		return nil, nil
	}

	var mj modelJob
	if err := json.Unmarshal([]byte(body), &mj); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	title := strings.TrimSpace(string(mj.Title))
	if title == "" {
		return nil, nil
	}

	reqs := []string(mj.Requirements)
	if reqs == nil {
		reqs = []string{}
	}

	return &domain.ExtractedJob{
		Title:        title,
		Company:      strings.TrimSpace(string(mj.Company)),
		Location:     strings.TrimSpace(string(mj.Location)),
		Salary:       strings.TrimSpace(string(mj.Salary)),
		JobType:      domain.ParseJobType(strings.ToLower(strings.TrimSpace(string(mj.JobType)))),
		Description:  strings.TrimSpace(string(mj.Description)),
		Requirements: reqs,
		ContactInfo:  strings.TrimSpace(string(mj.ContactInfo)),
		ContactEmail: strings.TrimSpace(string(mj.ContactEmail)),
		ContactPhone: strings.TrimSpace(string(mj.ContactPhone)),
	}, nil
}

// unwrap trims whitespace and a surrounding markdown code fence.
func unwrap(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else if strings.HasPrefix(s, "```") {
		// unterminated fence
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// looseString accepts a string, number, bool or null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case data[0] == '{', data[0] == '[':
		return fmt.Errorf("expected scalar, got %c", data[0])
	default:
		*s = looseString(data)
	}
	return nil
}

// looseList accepts an array of scalars or a single string.
type looseList []string

func (l *looseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var items []looseString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if v := strings.TrimSpace(string(it)); v != "" {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	}

	var single looseString
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if v := strings.TrimSpace(string(single)); v != "" {
		*l = []string{v}
	}
	return nil
}
