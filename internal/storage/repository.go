package storage

import (
	"context"
	"time"

	"storykeeper/internal/domain"
)

// UserRecord is an account as the backing service stores it.
type UserRecord struct {
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	// Favorites holds story IDs, most recently favorited first.
	Favorites []string `json:"favorites"`
}

// Repository defines the storage operations of the reference story service.
// Missing entities are reported with errors wrapping errs.ErrNotFound.
type Repository interface {
	// SaveStory stores a story. Stories are keyed by ID.
	SaveStory(ctx context.Context, story domain.Story) error

	// GetStory returns one story.
	GetStory(ctx context.Context, id string) (domain.Story, error)

	// ListStories returns up to limit stories, newest first. A limit of
	// zero or less returns all of them.
	ListStories(ctx context.Context, limit int) ([]domain.Story, error)

	// ListStoriesByUser returns every story submitted by username, newest first.
	ListStoriesByUser(ctx context.Context, username string) ([]domain.Story, error)

	// DeleteStory removes a story and drops it from every user's favorites.
	DeleteStory(ctx context.Context, id string) error

	// CreateUser stores a new account. An existing username fails with
	// ErrUserExists.
	CreateUser(ctx context.Context, user UserRecord) error

	// GetUser returns one account.
	GetUser(ctx context.Context, username string) (UserRecord, error)

	// AddFavorite and RemoveFavorite are idempotent.
	AddFavorite(ctx context.Context, username, storyID string) error
	RemoveFavorite(ctx context.Context, username, storyID string) error

	// Close gracefully shuts down the repository connection.
	Close() error
}
