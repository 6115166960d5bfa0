package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"storykeeper/internal/errs"
)

// Story is one submitted link. It is created by the service, which assigns
// ID and CreatedAt, and is never modified afterwards.
type Story struct {
	// ID is the opaque identifier assigned by the service.
	ID string `json:"storyId"`

	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`

	// Username is the submitter's account name.
	Username string `json:"username"`

	// CreatedAt orders stories, newest first.
	CreatedAt time.Time `json:"createdAt"`
}

// HostName returns the host part of the story URL, or the raw URL when it
// cannot be parsed.
func (s Story) HostName() string {
	u, err := url.Parse(s.URL)
	if err != nil || u.Host == "" {
		return s.URL
	}
	return u.Hostname()
}

// NewStory is the submission payload for a story that does not exist yet.
type NewStory struct {
	Author   string `json:"author"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Username string `json:"username"`
}

// Normalize returns a copy with surrounding whitespace removed.
func (n NewStory) Normalize() NewStory {
	return NewStory{
		Author:   strings.TrimSpace(n.Author),
		Title:    strings.TrimSpace(n.Title),
		URL:      strings.TrimSpace(n.URL),
		Username: strings.TrimSpace(n.Username),
	}
}

// Validate checks that every field is present and that URL is an absolute
// http or https URL.
func (n NewStory) Validate() error {
	n = n.Normalize()
	switch {
	case n.Author == "":
		return fmt.Errorf("author is required: %w", errs.ErrValidation)
	case n.Title == "":
		return fmt.Errorf("title is required: %w", errs.ErrValidation)
	case n.URL == "":
		return fmt.Errorf("url is required: %w", errs.ErrValidation)
	case n.Username == "":
		return fmt.Errorf("username is required: %w", errs.ErrValidation)
	}
	return ValidateURL(n.URL)
}

// ValidateURL reports whether raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url %q is malformed: %w", raw, errs.ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https: %w", raw, errs.ErrValidation)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host: %w", raw, errs.ErrValidation)
	}
	return nil
}
