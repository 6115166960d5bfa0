package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storykeeper/internal/domain"
)

func TestWireFieldNames(t *testing.T) {
	body, err := json.Marshal(CreateStoryRequest{
		Token: "tok",
		Story: StoryInput{Author: "Ada", Title: "Engines", URL: "https://example.com"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"tok","story":{"author":"Ada","title":"Engines","url":"https://example.com"}}`, string(body))

	body, err = json.Marshal(ErrorResponse{Error: ErrorDetail{Status: 404, Title: "Not Found", Message: "story s1: not found"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"status":404,"title":"Not Found","message":"story s1: not found"}}`, string(body))
}

func TestUserToAccount(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u := User{
		Username:  "ada",
		Name:      "Ada",
		CreatedAt: created,
		Favorites: []domain.Story{{ID: "s2"}},
		Stories:   []domain.Story{{ID: "s1"}},
	}

	acc := u.ToAccount("tok")
	assert.Equal(t, "tok", acc.Token)
	assert.Equal(t, "ada", acc.Username)
	assert.Equal(t, "Ada", acc.Name)
	assert.Equal(t, created, acc.CreatedAt)
	assert.Equal(t, []domain.Story{{ID: "s2"}}, acc.Favorites)
	assert.Equal(t, []domain.Story{{ID: "s1"}}, acc.OwnStories)
}
