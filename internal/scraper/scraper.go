package scraper

import (
	"context"
	"errors"
)

// ErrNoTitle is returned when a page has no usable title.
var ErrNoTitle = errors.New("page has no title")

// TitleFetcher looks up the title of a web page.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, url string) (string, error)
}

// Disabled is a TitleFetcher that never fetches anything.
type Disabled struct{}

func (Disabled) FetchTitle(context.Context, string) (string, error) {
	return "", ErrNoTitle
}
