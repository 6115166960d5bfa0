// Package server is a reference implementation of the story service API.
// It backs local development and the client's integration tests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"storykeeper/internal/api"
	"storykeeper/internal/auth"
	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
	"storykeeper/internal/storage"
)

// errForbidden marks an authenticated caller acting on someone else's data.
var errForbidden = fmt.Errorf("forbidden: %w", errs.ErrAuthorization)

// Server serves the story API.
type Server struct {
	repo   storage.Repository
	tokens *auth.Tokens
	log    logrus.FieldLogger
	now    func() time.Time
	newID  func() string
}

// New creates a Server on top of repo.
func New(repo storage.Repository, tokens *auth.Tokens, logger logrus.FieldLogger) *Server {
	return &Server{
		repo:   repo,
		tokens: tokens,
		log:    logger.WithField("component", "server"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// corsMiddleware allows browser clients on other origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("Request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Router builds the gorilla/mux router with every API route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware, s.logRequests)

	// preflight for every path; the middleware answers it
	r.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	r.HandleFunc(api.PathHealth, s.handleHealth()).Methods(http.MethodGet)
	r.HandleFunc(api.PathStories, s.handleListStories()).Methods(http.MethodGet)
	r.HandleFunc(api.PathStories, s.handleCreateStory()).Methods(http.MethodPost)
	r.HandleFunc(api.PathStory, s.handleGetStory()).Methods(http.MethodGet)
	r.HandleFunc(api.PathStory, s.handleDeleteStory()).Methods(http.MethodDelete)
	r.HandleFunc(api.PathFavorite, s.handleFavorite(true)).Methods(http.MethodPost)
	r.HandleFunc(api.PathFavorite, s.handleFavorite(false)).Methods(http.MethodDelete)
	r.HandleFunc(api.PathUser, s.handleGetUser()).Methods(http.MethodGet)
	r.HandleFunc(api.PathLogin, s.handleLogin()).Methods(http.MethodPost)
	r.HandleFunc(api.PathSignup, s.handleSignup()).Methods(http.MethodPost)
	return r
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleListStories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := api.DefaultLimit
		if raw := r.URL.Query().Get(api.QueryLimit); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				s.writeError(w, fmt.Errorf("limit must be a positive integer: %w", errs.ErrValidation))
				return
			}
			limit = min(n, api.MaxStoryLimit)
		}
		stories, err := s.repo.ListStories(r.Context(), limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.StoriesResponse{Stories: stories})
	}
}

func (s *Server) handleGetStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		story, err := s.repo.GetStory(r.Context(), mux.Vars(r)["storyId"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.StoryResponse{Story: story})
	}
}

func (s *Server) handleCreateStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateStoryRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		username, err := s.tokens.Verify(req.Token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		data := domain.NewStory{
			Author:   req.Story.Author,
			Title:    req.Story.Title,
			URL:      req.Story.URL,
			Username: username,
		}.Normalize()
		if err := data.Validate(); err != nil {
			s.writeError(w, err)
			return
		}

		story := domain.Story{
			ID:        s.newID(),
			Title:     data.Title,
			Author:    data.Author,
			URL:       data.URL,
			Username:  username,
			CreatedAt: s.now(),
		}
		if err := s.repo.SaveStory(r.Context(), story); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.StoryResponse{Story: story})
	}
}

func (s *Server) handleDeleteStory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.TokenRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		username, err := s.tokens.Verify(req.Token)
		if err != nil {
			s.writeError(w, err)
			return
		}
		id := mux.Vars(r)["storyId"]
		story, err := s.repo.GetStory(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if story.Username != username {
			s.writeError(w, fmt.Errorf("only %s can delete this story: %w", story.Username, errForbidden))
			return
		}
		if err := s.repo.DeleteStory(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.StoryResponse{Message: "deleted story", Story: story})
	}
}

func (s *Server) handleFavorite(add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.TokenRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		vars := mux.Vars(r)
		if err := s.authorizeUser(req.Token, vars["username"]); err != nil {
			s.writeError(w, err)
			return
		}

		var err error
		msg := "added favorite"
		if add {
			err = s.repo.AddFavorite(r.Context(), vars["username"], vars["storyId"])
		} else {
			msg = "removed favorite"
			err = s.repo.RemoveFavorite(r.Context(), vars["username"], vars["storyId"])
		}
		if err != nil {
			s.writeError(w, err)
			return
		}

		user, err := s.userPayload(r.Context(), vars["username"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.UserResponse{Message: msg, User: user})
	}
}

func (s *Server) handleGetUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := mux.Vars(r)["username"]
		if err := s.authorizeUser(r.URL.Query().Get(api.QueryToken), username); err != nil {
			s.writeError(w, err)
			return
		}
		user, err := s.userPayload(r.Context(), username)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.UserResponse{User: user})
	}
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.AuthRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		creds := domain.Credentials{Username: req.User.Username, Password: req.User.Password}
		if err := creds.ValidateLogin(); err != nil {
			s.writeError(w, err)
			return
		}
		rec, err := s.repo.GetUser(r.Context(), creds.Username)
		if err != nil || !auth.CheckPassword(rec.PasswordHash, creds.Password) {
			// do not reveal whether the user exists
			s.writeError(w, fmt.Errorf("invalid username or password: %w", errs.ErrAuthorization))
			return
		}
		s.respondAuth(w, r, http.StatusOK, creds.Username)
	}
}

func (s *Server) handleSignup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.AuthRequest
		if err := decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		creds := domain.Credentials{
			Username: strings.TrimSpace(req.User.Username),
			Password: req.User.Password,
			Name:     strings.TrimSpace(req.User.Name),
		}
		if err := creds.ValidateSignup(); err != nil {
			s.writeError(w, err)
			return
		}
		hash, err := auth.HashPassword(creds.Password)
		if err != nil {
			s.writeError(w, err)
			return
		}
		err = s.repo.CreateUser(r.Context(), storage.UserRecord{
			Username:     creds.Username,
			Name:         creds.Name,
			PasswordHash: hash,
			CreatedAt:    s.now(),
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.respondAuth(w, r, http.StatusCreated, creds.Username)
	}
}

func (s *Server) respondAuth(w http.ResponseWriter, r *http.Request, status int, username string) {
	token, err := s.tokens.Issue(username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	user, err := s.userPayload(r.Context(), username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, status, api.AuthResponse{Token: token, User: user})
}

// authorizeUser checks that token belongs to username.
func (s *Server) authorizeUser(token, username string) error {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return err
	}
	if subject != username {
		return fmt.Errorf("token does not belong to %s: %w", username, errForbidden)
	}
	return nil
}

// userPayload resolves a stored account into its API form. Favorites whose
// story vanished are skipped.
func (s *Server) userPayload(ctx context.Context, username string) (api.User, error) {
	rec, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return api.User{}, err
	}
	own, err := s.repo.ListStoriesByUser(ctx, username)
	if err != nil {
		return api.User{}, err
	}
	favs := make([]domain.Story, 0, len(rec.Favorites))
	for _, id := range rec.Favorites {
		st, err := s.repo.GetStory(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			continue
		}
		if err != nil {
			return api.User{}, err
		}
		favs = append(favs, st)
	}
	return api.User{
		Username:  rec.Username,
		Name:      rec.Name,
		CreatedAt: rec.CreatedAt,
		Favorites: favs,
		Stories:   own,
	}, nil
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", errs.ErrValidation)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("Failed to write response")
	}
}

// writeError maps err onto an HTTP status and the API error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrUserExists):
		status = http.StatusConflict
	case errors.Is(err, errForbidden):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrAuthorization):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("Request failed")
		msg = "internal error"
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: api.ErrorDetail{
		Status:  status,
		Title:   http.StatusText(status),
		Message: msg,
	}})
}
