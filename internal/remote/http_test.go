package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storykeeper/internal/api"
	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService(t *testing.T, h http.Handler) *HTTPService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := NewHTTPService(srv.URL, HTTPOptions{Timeout: time.Second, Retries: 3, RetryDelay: time.Millisecond, StoryLimit: 25}, testLogger())
	require.NoError(t, err)
	return svc
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewHTTPService_RejectsBadURL(t *testing.T) {
	_, err := NewHTTPService("not-a-url", HTTPOptions{}, testLogger())
	assert.Error(t, err)
}

func TestHTTPService_FetchAll(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/stories", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		writeJSON(t, w, http.StatusOK, api.StoriesResponse{Stories: []domain.Story{
			{ID: "s2", Title: "Two", Author: "B", URL: "https://b.example", Username: "bob", CreatedAt: created},
			{ID: "s1", Title: "One", Author: "A", URL: "https://a.example", Username: "ada", CreatedAt: created.Add(-time.Hour)},
		}})
	}))

	stories, err := svc.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "s2", stories[0].ID)
	assert.Equal(t, created, stories[0].CreatedAt)
	assert.Equal(t, "s1", stories[1].ID)
}

func TestHTTPService_FetchAll_RetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(t, w, http.StatusBadGateway, api.ErrorResponse{Error: api.ErrorDetail{Status: 502, Message: "upstream down"}})
			return
		}
		writeJSON(t, w, http.StatusOK, api.StoriesResponse{Stories: []domain.Story{{ID: "s1"}}})
	}))

	stories, err := svc.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, stories, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPService_FetchAll_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := svc.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTransport)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPService_FetchAll_DeadlineDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	svc, err := NewHTTPService(srv.URL, HTTPOptions{Timeout: time.Second, Retries: 3, RetryDelay: 300 * time.Millisecond}, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = svc.FetchAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTransport)
	assert.Equal(t, "transport", errs.Kind(err))
}

func TestHTTPService_FetchUser_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	svc, err := NewHTTPService(srv.URL, HTTPOptions{Timeout: time.Second, Retries: 3, RetryDelay: time.Second}, testLogger())
	require.NoError(t, err)

	_, err = svc.FetchUser(ctx, "tok", "ada")
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestHTTPService_FetchAll_EmptyList(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{})
	}))

	stories, err := svc.FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stories)
	assert.Empty(t, stories)
}

func TestHTTPService_Create(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stories", r.URL.Path)

		var req api.CreateStoryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok", req.Token)
		assert.Equal(t, api.StoryInput{Author: "Ada", Title: "Engines", URL: "https://example.com"}, req.Story)

		writeJSON(t, w, http.StatusCreated, api.StoryResponse{Story: domain.Story{
			ID: "s3", Author: "Ada", Title: "Engines", URL: "https://example.com", Username: "ada", CreatedAt: time.Now().UTC(),
		}})
	}))

	story, err := svc.Create(context.Background(), "tok", domain.NewStory{Author: "Ada", Title: "Engines", URL: "https://example.com", Username: "ada"})
	require.NoError(t, err)
	assert.Equal(t, "s3", story.ID)
	assert.Equal(t, "ada", story.Username)
}

func TestHTTPService_Create_IsNotRetried(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := svc.Create(context.Background(), "tok", domain.NewStory{Author: "a", Title: "t", URL: "https://x.example", Username: "u"})
	assert.ErrorIs(t, err, errs.ErrTransport)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPService_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, errs.ErrValidation},
		{http.StatusConflict, errs.ErrValidation},
		{http.StatusUnauthorized, errs.ErrAuthorization},
		{http.StatusForbidden, errs.ErrAuthorization},
		{http.StatusNotFound, errs.ErrNotFound},
		{http.StatusInternalServerError, errs.ErrTransport},
	}
	for _, c := range cases {
		t.Run(http.StatusText(c.status), func(t *testing.T) {
			svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, c.status, api.ErrorResponse{Error: api.ErrorDetail{Status: c.status, Title: "err", Message: "rejected"}})
			}))
			err := svc.Delete(context.Background(), "tok", "s1")
			require.Error(t, err)
			assert.ErrorIs(t, err, c.want)
			assert.Contains(t, err.Error(), "rejected")
		})
	}
}

func TestHTTPService_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	svc, err := NewHTTPService(base, HTTPOptions{Timeout: 200 * time.Millisecond, Retries: 1}, testLogger())
	require.NoError(t, err)

	err = svc.Favorite(context.Background(), "tok", "ada", "s1")
	assert.ErrorIs(t, err, errs.ErrTransport)
}

func TestHTTPService_FavoriteAndUnfavorite(t *testing.T) {
	var seen []string
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.TokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok", req.Token)
		seen = append(seen, r.Method+" "+r.URL.EscapedPath())
		writeJSON(t, w, http.StatusOK, api.UserResponse{Message: "ok", User: api.User{Username: "ada"}})
	}))

	require.NoError(t, svc.Favorite(context.Background(), "tok", "ada", "s1"))
	require.NoError(t, svc.Unfavorite(context.Background(), "tok", "ada", "s/2"))
	assert.Equal(t, []string{
		"POST /users/ada/favorites/s1",
		"DELETE /users/ada/favorites/s%2F2",
	}, seen)
}

func TestHTTPService_LoginAndSignup(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.AuthRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch r.URL.Path {
		case "/login":
			if req.User.Password != "secret" {
				writeJSON(t, w, http.StatusUnauthorized, api.ErrorResponse{Error: api.ErrorDetail{Status: 401, Message: "bad credentials"}})
				return
			}
			writeJSON(t, w, http.StatusOK, api.AuthResponse{Token: "tok", User: api.User{
				Username:  req.User.Username,
				Name:      "Ada",
				Favorites: []domain.Story{{ID: "s1", Username: "bob"}},
				Stories:   []domain.Story{{ID: "s2", Username: req.User.Username}},
			}})
		case "/signup":
			assert.Equal(t, "Ada", req.User.Name)
			writeJSON(t, w, http.StatusCreated, api.AuthResponse{Token: "new", User: api.User{Username: req.User.Username, Name: req.User.Name}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	acc, err := svc.Login(context.Background(), domain.Credentials{Username: "ada", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", acc.Token)
	assert.Equal(t, "Ada", acc.Name)
	require.Len(t, acc.Favorites, 1)
	require.Len(t, acc.OwnStories, 1)

	_, err = svc.Login(context.Background(), domain.Credentials{Username: "ada", Password: "wrong"})
	assert.ErrorIs(t, err, errs.ErrAuthorization)

	acc, err = svc.Signup(context.Background(), domain.Credentials{Username: "ada", Password: "secret", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "new", acc.Token)
}

func TestHTTPService_FetchUser(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/ada", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		writeJSON(t, w, http.StatusOK, api.UserResponse{User: api.User{Username: "ada", Favorites: []domain.Story{{ID: "s9"}}}})
	}))

	acc, err := svc.FetchUser(context.Background(), "tok", "ada")
	require.NoError(t, err)
	assert.Equal(t, "tok", acc.Token)
	require.Len(t, acc.Favorites, 1)
	assert.Equal(t, "s9", acc.Favorites[0].ID)
}
