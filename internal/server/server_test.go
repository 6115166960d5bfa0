package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storykeeper/internal/api"
	"storykeeper/internal/auth"
	"storykeeper/internal/storage"
)

type testServer struct {
	*Server
	handler http.Handler
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	repo, err := storage.NewBadgerRepository("", true, logger)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repo.Close()) })

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	srv := New(repo, tokens, logger)
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	next := 0
	srv.newID = func() string {
		next++
		return fmt.Sprintf("story-%d", next)
	}
	return &testServer{Server: srv, handler: srv.Router()}
}

func (ts *testServer) call(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	rec := ts.call(t, http.MethodPost, api.PathSignup, api.AuthRequest{User: api.Credentials{
		Username: username, Password: "pw-" + username, Name: "Name " + username,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out api.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Token
}

func (ts *testServer) submit(t *testing.T, token, title string) api.StoryResponse {
	t.Helper()
	rec := ts.call(t, http.MethodPost, api.PathStories, api.CreateStoryRequest{
		Token: token,
		Story: api.StoryInput{Author: "Ann", Title: title, URL: "https://example.com/" + title},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out api.StoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorDetail {
	t.Helper()
	var out api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error
}

func TestHealth(t *testing.T) {
	ts := setupServer(t)
	rec := ts.call(t, http.MethodGet, api.PathHealth, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	ts := setupServer(t)
	rec := ts.call(t, http.MethodOptions, api.PathHealth, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListStoriesEmpty(t *testing.T) {
	ts := setupServer(t)
	rec := ts.call(t, http.MethodGet, api.PathStories, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stories":[]}`, rec.Body.String())
}

func TestListStoriesNewestFirstWithLimit(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "ann")
	ts.submit(t, token, "one")
	ts.submit(t, token, "two")
	ts.submit(t, token, "three")

	rec := ts.call(t, http.MethodGet, api.PathStories+"?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out api.StoriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Stories, 2)
	assert.Equal(t, "three", out.Stories[0].Title)
	assert.Equal(t, "two", out.Stories[1].Title)
}

func TestListStoriesRejectsBadLimit(t *testing.T) {
	ts := setupServer(t)
	for _, q := range []string{"0", "-1", "many"} {
		rec := ts.call(t, http.MethodGet, api.PathStories+"?limit="+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestCreateStory(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "ann")

	out := ts.submit(t, token, "hello")
	assert.Equal(t, "story-1", out.Story.ID)
	assert.Equal(t, "ann", out.Story.Username)
	assert.Equal(t, "hello", out.Story.Title)
	assert.False(t, out.Story.CreatedAt.IsZero())

	rec := ts.call(t, http.MethodGet, "/stories/story-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateStoryValidation(t *testing.T) {
	ts := setupServer(t)
	token := ts.signup(t, "ann")

	tests := []struct {
		name  string
		input api.StoryInput
	}{
		{name: "missing title", input: api.StoryInput{Author: "a", URL: "https://x.io"}},
		{name: "missing author", input: api.StoryInput{Title: "t", URL: "https://x.io"}},
		{name: "bad url", input: api.StoryInput{Author: "a", Title: "t", URL: "ftp://x.io"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.call(t, http.MethodPost, api.PathStories, api.CreateStoryRequest{Token: token, Story: tt.input})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, http.StatusBadRequest, decodeErr(t, rec).Status)
		})
	}
}

func TestCreateStoryRequiresToken(t *testing.T) {
	ts := setupServer(t)
	rec := ts.call(t, http.MethodPost, api.PathStories, api.CreateStoryRequest{
		Token: "nope",
		Story: api.StoryInput{Author: "a", Title: "t", URL: "https://x.io"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	ts := setupServer(t)
	req := httptest.NewRequest(http.MethodPost, api.PathStories, bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteStoryOwnership(t *testing.T) {
	ts := setupServer(t)
	ann := ts.signup(t, "ann")
	bob := ts.signup(t, "bob")
	story := ts.submit(t, ann, "mine").Story

	rec := ts.call(t, http.MethodDelete, "/stories/"+story.ID, api.TokenRequest{Token: bob})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.call(t, http.MethodDelete, "/stories/"+story.ID, api.TokenRequest{Token: ann})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.call(t, http.MethodDelete, "/stories/"+story.ID, api.TokenRequest{Token: ann})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFavoritesRoundTrip(t *testing.T) {
	ts := setupServer(t)
	ann := ts.signup(t, "ann")
	story := ts.submit(t, ann, "fav").Story
	path := "/users/ann/favorites/" + story.ID

	rec := ts.call(t, http.MethodPost, path, api.TokenRequest{Token: ann})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out api.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.User.Favorites, 1)
	assert.Equal(t, story.ID, out.User.Favorites[0].ID)

	rec = ts.call(t, http.MethodDelete, path, api.TokenRequest{Token: ann})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.User.Favorites)
}

func TestFavoriteRejections(t *testing.T) {
	ts := setupServer(t)
	ann := ts.signup(t, "ann")
	bob := ts.signup(t, "bob")
	story := ts.submit(t, ann, "fav").Story

	rec := ts.call(t, http.MethodPost, "/users/ann/favorites/"+story.ID, api.TokenRequest{Token: bob})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.call(t, http.MethodPost, "/users/ann/favorites/missing", api.TokenRequest{Token: ann})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletedStoryLeavesFavorites(t *testing.T) {
	ts := setupServer(t)
	ann := ts.signup(t, "ann")
	bob := ts.signup(t, "bob")
	story := ts.submit(t, ann, "shared").Story

	rec := ts.call(t, http.MethodPost, "/users/bob/favorites/"+story.ID, api.TokenRequest{Token: bob})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.call(t, http.MethodDelete, "/stories/"+story.ID, api.TokenRequest{Token: ann})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.call(t, http.MethodGet, "/users/bob?token="+bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out api.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.User.Favorites)
}

func TestGetUser(t *testing.T) {
	ts := setupServer(t)
	ann := ts.signup(t, "ann")
	ts.submit(t, ann, "own")

	rec := ts.call(t, http.MethodGet, "/users/ann?token="+ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out api.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ann", out.User.Username)
	assert.Equal(t, "Name ann", out.User.Name)
	require.Len(t, out.User.Stories, 1)
	assert.Equal(t, "own", out.User.Stories[0].Title)

	rec = ts.call(t, http.MethodGet, "/users/ann", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupAndLogin(t *testing.T) {
	ts := setupServer(t)
	ts.signup(t, "ann")

	rec := ts.call(t, http.MethodPost, api.PathSignup, api.AuthRequest{User: api.Credentials{Username: "ann", Password: "x", Name: "Other"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.call(t, http.MethodPost, api.PathSignup, api.AuthRequest{User: api.Credentials{Username: "cat", Password: "x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.call(t, http.MethodPost, api.PathLogin, api.AuthRequest{User: api.Credentials{Username: "ann", Password: "pw-ann"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var out api.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "ann", out.User.Username)

	rec = ts.call(t, http.MethodPost, api.PathLogin, api.AuthRequest{User: api.Credentials{Username: "ann", Password: "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.call(t, http.MethodPost, api.PathLogin, api.AuthRequest{User: api.Credentials{Username: "ghost", Password: "pw"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
