package domain

import (
	"fmt"
	"strings"
	"time"

	"storykeeper/internal/errs"
)

// Credentials identify an account on login or signup. Name is only used
// by signup.
type Credentials struct {
	Username string
	Password string
	Name     string
}

// ValidateLogin checks the fields login needs.
func (c Credentials) ValidateLogin() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return fmt.Errorf("username and password are required: %w", errs.ErrValidation)
	}
	return nil
}

// ValidateSignup checks the fields signup needs.
func (c Credentials) ValidateSignup() error {
	if err := c.ValidateLogin(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required: %w", errs.ErrValidation)
	}
	return nil
}

// Account is what the service returns for an authenticated principal.
type Account struct {
	Token      string
	Username   string
	Name       string
	CreatedAt  time.Time
	Favorites  []Story
	OwnStories []Story
}
