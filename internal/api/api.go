// Package api defines the JSON bodies exchanged between the story client
// and the backing service.
package api

import (
	"time"

	"storykeeper/internal/domain"
)

// Route templates, in gorilla/mux syntax.
const (
	PathStories   = "/stories"
	PathStory     = "/stories/{storyId}"
	PathUser      = "/users/{username}"
	PathFavorite  = "/users/{username}/favorites/{storyId}"
	PathLogin     = "/login"
	PathSignup    = "/signup"
	PathHealth    = "/health"
	QueryLimit    = "limit"
	QueryToken    = "token"
	DefaultLimit  = 100
	MaxStoryLimit = 1000
)

// StoriesResponse is the body of GET /stories.
type StoriesResponse struct {
	Stories []domain.Story `json:"stories"`
}

// StoryInput carries the submitted fields of a new story.
type StoryInput struct {
	Author string `json:"author"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// CreateStoryRequest is the body of POST /stories.
type CreateStoryRequest struct {
	Token string     `json:"token"`
	Story StoryInput `json:"story"`
}

// StoryResponse returns one story, e.g. after creating or deleting it.
type StoryResponse struct {
	Message string       `json:"message,omitempty"`
	Story   domain.Story `json:"story"`
}

// TokenRequest is the body of mutations that only need authorization.
type TokenRequest struct {
	Token string `json:"token"`
}

// User is an account with its favorites and submitted stories.
type User struct {
	Username  string         `json:"username"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"createdAt"`
	Favorites []domain.Story `json:"favorites"`
	Stories   []domain.Story `json:"stories"`
}

// UserResponse is the body of GET /users/{username} and of favorite changes.
type UserResponse struct {
	Message string `json:"message,omitempty"`
	User    User   `json:"user"`
}

// Credentials are sent on login and signup. Name is only read by signup.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// AuthRequest is the body of POST /login and POST /signup.
type AuthRequest struct {
	User Credentials `json:"user"`
}

// AuthResponse carries the session token and the account.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Status  int    `json:"status"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ToAccount converts a user payload and token into a domain account.
func (u User) ToAccount(token string) domain.Account {
	return domain.Account{
		Token:      token,
		Username:   u.Username,
		Name:       u.Name,
		CreatedAt:  u.CreatedAt,
		Favorites:  u.Favorites,
		OwnStories: u.Stories,
	}
}
