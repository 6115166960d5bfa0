package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"

	"storykeeper/internal/api"
	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
)

// HTTPOptions tune HTTPService.
type HTTPOptions struct {
	// Timeout bounds every request. Zero means 10 seconds.
	Timeout time.Duration
	// Retries is the number of attempts for idempotent reads. Zero means 3.
	Retries uint
	// RetryDelay is the base backoff between read attempts.
	RetryDelay time.Duration
	// StoryLimit is passed as ?limit= to the story listing.
	StoryLimit int
}

// HTTPService implements StoryService against the JSON API in package api.
type HTTPService struct {
	baseURL    *url.URL
	httpClient *http.Client
	opts       HTTPOptions
	log        logrus.FieldLogger
}

// NewHTTPService creates a client for the service rooted at baseURL.
func NewHTTPService(baseURL string, opts HTTPOptions, logger logrus.FieldLogger) (*HTTPService, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	if opts.StoryLimit <= 0 {
		opts.StoryLimit = api.DefaultLimit
	}
	return &HTTPService{
		baseURL:    u,
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		log:        logger.WithField("component", "remote"),
	}, nil
}

// FetchAll lists stories. Transport failures are retried with backoff.
func (s *HTTPService) FetchAll(ctx context.Context) ([]domain.Story, error) {
	query := url.Values{api.QueryLimit: {strconv.Itoa(s.opts.StoryLimit)}}
	resp, err := retryRead(ctx, s, "fetch stories", func() (api.StoriesResponse, error) {
		var out api.StoriesResponse
		err := s.do(ctx, http.MethodGet, api.PathStories, query, nil, &out)
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if resp.Stories == nil {
		return []domain.Story{}, nil
	}
	return resp.Stories, nil
}

func (s *HTTPService) Create(ctx context.Context, token string, data domain.NewStory) (domain.Story, error) {
	body := api.CreateStoryRequest{
		Token: token,
		Story: api.StoryInput{Author: data.Author, Title: data.Title, URL: data.URL},
	}
	var out api.StoryResponse
	if err := s.do(ctx, http.MethodPost, api.PathStories, nil, body, &out); err != nil {
		return domain.Story{}, fmt.Errorf("create story: %w", err)
	}
	if out.Story.ID == "" {
		return domain.Story{}, fmt.Errorf("create story: response carries no story id: %w", errs.ErrTransport)
	}
	return out.Story, nil
}

func (s *HTTPService) Delete(ctx context.Context, token, storyID string) error {
	if err := s.do(ctx, http.MethodDelete, storyPath(storyID), nil, api.TokenRequest{Token: token}, nil); err != nil {
		return fmt.Errorf("delete story %s: %w", storyID, err)
	}
	return nil
}

func (s *HTTPService) Favorite(ctx context.Context, token, username, storyID string) error {
	if err := s.do(ctx, http.MethodPost, favoritePath(username, storyID), nil, api.TokenRequest{Token: token}, nil); err != nil {
		return fmt.Errorf("favorite story %s: %w", storyID, err)
	}
	return nil
}

func (s *HTTPService) Unfavorite(ctx context.Context, token, username, storyID string) error {
	if err := s.do(ctx, http.MethodDelete, favoritePath(username, storyID), nil, api.TokenRequest{Token: token}, nil); err != nil {
		return fmt.Errorf("unfavorite story %s: %w", storyID, err)
	}
	return nil
}

func (s *HTTPService) Login(ctx context.Context, creds domain.Credentials) (domain.Account, error) {
	return s.authenticate(ctx, api.PathLogin, api.Credentials{Username: creds.Username, Password: creds.Password})
}

func (s *HTTPService) Signup(ctx context.Context, creds domain.Credentials) (domain.Account, error) {
	return s.authenticate(ctx, api.PathSignup, api.Credentials{Username: creds.Username, Password: creds.Password, Name: creds.Name})
}

func (s *HTTPService) authenticate(ctx context.Context, path string, creds api.Credentials) (domain.Account, error) {
	var out api.AuthResponse
	if err := s.do(ctx, http.MethodPost, path, nil, api.AuthRequest{User: creds}, &out); err != nil {
		return domain.Account{}, fmt.Errorf("%s: %w", strings.TrimPrefix(path, "/"), err)
	}
	if out.Token == "" {
		return domain.Account{}, fmt.Errorf("%s: response carries no token: %w", strings.TrimPrefix(path, "/"), errs.ErrTransport)
	}
	return out.User.ToAccount(out.Token), nil
}

// FetchUser reads an account. Transport failures are retried with backoff.
func (s *HTTPService) FetchUser(ctx context.Context, token, username string) (domain.Account, error) {
	query := url.Values{api.QueryToken: {token}}
	resp, err := retryRead(ctx, s, "fetch user", func() (api.UserResponse, error) {
		var out api.UserResponse
		err := s.do(ctx, http.MethodGet, userPath(username), query, nil, &out)
		return out, err
	})
	if err != nil {
		return domain.Account{}, err
	}
	return resp.User.ToAccount(token), nil
}

// retryRead runs an idempotent read, retrying only transport failures.
func retryRead[T any](ctx context.Context, s *HTTPService, op string, fn func() (T, error)) (T, error) {
	out, err := retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(s.opts.Retries),
		retry.Delay(s.opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errs.ErrTransport) }),
		retry.OnRetry(func(n uint, err error) {
			s.log.WithError(err).WithFields(logrus.Fields{"op": op, "attempt": n + 1}).Warn("Retrying read")
		}),
	)
	if err != nil {
		// retry-go hands back the bare context error when ctx ends during
		// the backoff delay.
		if !errors.Is(err, errs.ErrTransport) && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return out, fmt.Errorf("%s: %v: %w", op, err, errs.ErrTransport)
		}
		return out, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *HTTPService) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := s.baseURL.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := s.log.WithFields(logrus.Fields{"method": method, "path": path})
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Warn("Request failed")
		return fmt.Errorf("%s %s: %v: %w", method, path, err, errs.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp)
		log.WithFields(logrus.Fields{"status": resp.StatusCode, "message": apiErr.Message}).Debug("Service rejected request")
		return classifyStatus(resp.StatusCode, apiErr)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, errs.ErrTransport)
	}
	return nil
}

func decodeError(resp *http.Response) api.ErrorDetail {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body api.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Message == "" {
		return api.ErrorDetail{Status: resp.StatusCode, Title: resp.Status, Message: strings.TrimSpace(string(raw))}
	}
	return body.Error
}

// classifyStatus maps an HTTP status to the error taxonomy.
func classifyStatus(status int, detail api.ErrorDetail) error {
	msg := detail.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%s: %w", msg, errs.ErrValidation)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return fmt.Errorf("%s: %w", msg, errs.ErrAuthorization)
	case status == http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, errs.ErrNotFound)
	default:
		return fmt.Errorf("status %d: %s: %w", status, msg, errs.ErrTransport)
	}
}

func storyPath(storyID string) string {
	return "/stories/" + url.PathEscape(storyID)
}

func userPath(username string) string {
	return "/users/" + url.PathEscape(username)
}

func favoritePath(username, storyID string) string {
	return userPath(username) + "/favorites/" + url.PathEscape(storyID)
}
