package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// maxTitleLen caps scraped titles; some pages stuff whole paragraphs in
// <title>.
const maxTitleLen = 200

// RodScraper fetches page titles with a headless browser.
type RodScraper struct {
	log     logrus.FieldLogger
	timeout time.Duration
}

// NewRodScraper creates a scraper. A non-positive timeout means 30 seconds
// per page.
func NewRodScraper(timeout time.Duration, logger logrus.FieldLogger) *RodScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RodScraper{
		log:     logger.WithField("component", "scraper"),
		timeout: timeout,
	}
}

// FetchTitle launches a browser, loads url and returns its cleaned <title>.
func (s *RodScraper) FetchTitle(ctx context.Context, url string) (title string, err error) {
	log := s.log.WithField("url", url)
	log.Info("Fetching page title")

	path, exists := launcher.LookPath()
	if !exists {
		log.Error("Cannot find browser executable for rod")
		return "", errors.New("rod browser dependency not found")
	}
	controlURL, err := launcher.New().Bin(path).Launch()
	if err != nil {
		log.WithError(err).Error("Failed to launch rod browser")
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		log.WithError(err).Error("Failed to connect to rod browser")
		return "", fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			log.WithError(closeErr).Error("Error closing rod browser instance")
			if err == nil {
				err = fmt.Errorf("error closing browser: %w", closeErr)
			}
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return "", fmt.Errorf("failed to create page: %w", err)
	}

	pageCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	page = page.Context(pageCtx)

	if err := page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.WithError(pageCtx.Err()).Warn("Title fetch timed out")
			return "", fmt.Errorf("title fetch timed out for %s: %w", url, pageCtx.Err())
		}
		log.WithError(err).Error("Failed to wait for page load")
		return "", fmt.Errorf("failed waiting for page load: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		log.WithError(err).Warn("Could not read page info")
		return "", fmt.Errorf("failed to read page info: %w", err)
	}

	title = CleanTitle(info.Title)
	if title == "" {
		log.Warn("Page has no title")
		return "", ErrNoTitle
	}
	log.WithField("title", title).Debug("Fetched page title")
	return title, nil
}

// CleanTitle collapses whitespace and truncates overly long titles on a rune
// boundary.
func CleanTitle(raw string) string {
	title := strings.Join(strings.FieldsFunc(raw, unicode.IsSpace), " ")
	runes := []rune(title)
	if len(runes) > maxTitleLen {
		title = strings.TrimSpace(string(runes[:maxTitleLen-1])) + "…"
	}
	return title
}
