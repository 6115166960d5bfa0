// Package remote is the network boundary of the story client. The core
// depends only on StoryService; HTTPService talks to the backing service
// over JSON/HTTP.
package remote

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks storykeeper/internal/remote StoryService

import (
	"context"

	"storykeeper/internal/domain"
)

// StoryService is the remote authority for stories, accounts and favorites.
// Results returned without error are canonical. Failures wrap one of the
// sentinels in package errs.
type StoryService interface {
	// FetchAll returns every story, newest first.
	FetchAll(ctx context.Context) ([]domain.Story, error)

	// Create submits a story and returns it with the server-assigned ID
	// and timestamp.
	Create(ctx context.Context, token string, data domain.NewStory) (domain.Story, error)

	// Delete removes a story. The service enforces ownership.
	Delete(ctx context.Context, token, storyID string) error

	Favorite(ctx context.Context, token, username, storyID string) error
	Unfavorite(ctx context.Context, token, username, storyID string) error

	Login(ctx context.Context, creds domain.Credentials) (domain.Account, error)
	Signup(ctx context.Context, creds domain.Credentials) (domain.Account, error)

	// FetchUser re-reads an account, including its favorites and stories.
	FetchUser(ctx context.Context, token, username string) (domain.Account, error)
}
