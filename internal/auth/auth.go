// Package auth issues and verifies session tokens and hashes passwords for
// the reference story service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"storykeeper/internal/errs"
)

// Tokens signs HS256 JWTs whose subject is the username.
type Tokens struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewTokens creates a token issuer. A non-positive ttl means 24 hours.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tokens{signKey: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed token for username.
func (t *Tokens) Issue(username string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns its username. Any failure wraps
// errs.ErrAuthorization.
func (t *Tokens) Verify(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing token: %w", errs.ErrAuthorization)
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid token: %w", errs.ErrAuthorization)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject: %w", errs.ErrAuthorization)
	}
	return claims.Subject, nil
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
