package apify

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RunInput is the actor input for apify/facebook-groups-scraper.
type RunInput struct {
	StartURLs         []StartURL `json:"startUrls"`
	ResultsLimit      int        `json:"resultsLimit"`
	ViewOption        string     `json:"viewOption"`
	MaxComments       int        `json:"maxComments"`
	MaxRequestRetries int        `json:"maxRequestRetries"`
}

type StartURL struct {
	URL string `json:"url"`
}

// Item is one dataset item. The actor is loose about field names and
// types, so everything is optional.
type Item struct {
	Text              string       `json:"text"`
	Message           string       `json:"message"`
	ImageURLs         []string     `json:"imageUrls"`
	Media             []Media      `json:"media"`
	Attachments       []Attachment `json:"attachments"`
	Author            flexString   `json:"author"`
	User              *User        `json:"user"`
	Date              flexString   `json:"date"`
	Time              flexString   `json:"time"`
	Timestamp         flexString   `json:"timestamp"`
	URL               string       `json:"url"`
	PostURL           string       `json:"postUrl"`
	FacebookURL       string       `json:"facebookUrl"`
	InputURL          string       `json:"inputUrl"`
	ID                flexString   `json:"id"`
	LegacyID          flexString   `json:"legacyId"`
	FacebookID        flexString   `json:"facebookId"`
	LikesCount        flexInt      `json:"likesCount"`
	SharesCount       flexInt      `json:"sharesCount"`
	CommentsCount     flexInt      `json:"commentsCount"`
	TopReactionsCount flexInt      `json:"topReactionsCount"`
	GroupTitle        string       `json:"groupTitle"`
}

type User struct {
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

type Media struct {
	Thumbnail  string      `json:"thumbnail"`
	PhotoImage *PhotoImage `json:"photo_image"`
}

type Attachment struct {
	Thumbnail  string      `json:"thumbnail"`
	Typename   string      `json:"__typename"`
	PhotoImage *PhotoImage `json:"photo_image"`
	URL        string      `json:"url"`
	ID         flexString  `json:"id"`
	OCRText    string      `json:"ocrText"`
}

type PhotoImage struct {
	URI    string  `json:"uri"`
	Height flexInt `json:"height"`
	Width  flexInt `json:"width"`
}

func (p *PhotoImage) uri() string {
	if p == nil {
		return ""
	}
	return p.URI
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

// flexInt accepts a JSON number or a numeric string. Anything else is zero.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(f)
	return nil
}
