// Package session is the application context of one client: it owns the
// story collection, the current user and the favorites controller, and
// turns view intents into core operations.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
	"storykeeper/internal/favorites"
	"storykeeper/internal/remote"
	"storykeeper/internal/stories"
)

// StoryView is a render-ready story with per-user display hints.
type StoryView struct {
	Story domain.Story

	// ShowFavorite is true when a user is logged in.
	ShowFavorite bool
	Favorite     bool

	// Deletable marks the user's own stories. It controls whether a view
	// offers deletion; the service still enforces ownership.
	Deletable bool
}

// Session wires one story collection to one (optional) logged-in user.
type Session struct {
	svc       remote.StoryService
	log       logrus.FieldLogger
	favorites *favorites.Controller

	mu      sync.RWMutex
	stories *stories.Collection
	user    *domain.User
}

// New creates a session with no stories loaded and nobody logged in.
func New(svc remote.StoryService, logger logrus.FieldLogger) *Session {
	return &Session{
		svc:       svc,
		log:       logger.WithField("component", "session"),
		favorites: favorites.NewController(svc, nil, logger),
	}
}

// Start loads the story collection. Once loaded, the same collection is
// refreshed in place so commits from in-flight operations land in it.
func (s *Session) Start(ctx context.Context) error {
	if c, _ := s.snapshot(); c != nil {
		return c.Reload(ctx)
	}
	c, err := stories.GetStories(ctx, s.svc, s.log)
	if err != nil {
		return err
	}
	s.install(c)
	return nil
}

// Reload refreshes the collection. On failure it stays as it was.
func (s *Session) Reload(ctx context.Context) error {
	return s.Start(ctx)
}

// install sets the collection unless a concurrent Start got there first.
func (s *Session) install(c *stories.Collection) {
	s.mu.Lock()
	if s.stories != nil {
		s.mu.Unlock()
		return
	}
	s.stories = c
	s.mu.Unlock()
	s.favorites.SetStories(c)
}

func (s *Session) snapshot() (*stories.Collection, *domain.User) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stories, s.user
}

// CurrentUser returns the logged-in user, or nil.
func (s *Session) CurrentUser() *domain.User {
	_, u := s.snapshot()
	return u
}

// Stories returns the current collection, or nil before Start.
func (s *Session) Stories() *stories.Collection {
	c, _ := s.snapshot()
	return c
}

// Login authenticates and reloads the collection. Either both succeed or
// the session is left as it was.
func (s *Session) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if err := creds.ValidateLogin(); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return s.authenticate(ctx, creds.Username, func() (domain.Account, error) {
		return s.svc.Login(ctx, creds)
	})
}

// Signup creates an account, logs it in and reloads the collection.
func (s *Session) Signup(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if err := creds.ValidateSignup(); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	return s.authenticate(ctx, creds.Username, func() (domain.Account, error) {
		return s.svc.Signup(ctx, creds)
	})
}

func (s *Session) authenticate(ctx context.Context, username string, call func() (domain.Account, error)) (*domain.User, error) {
	log := s.log.WithField("username", username)

	acc, err := call()
	if err != nil {
		log.WithError(err).Warn("Authentication failed")
		return nil, fmt.Errorf("authenticate %s: %w", username, err)
	}

	if err := s.Start(ctx); err != nil {
		log.WithError(err).Warn("Story reload after authentication failed, staying logged out")
		return nil, fmt.Errorf("authenticate %s: %w", username, err)
	}

	u := domain.NewUser(acc)
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	log.WithFields(logrus.Fields{
		"favorite_count": len(u.Favorites()),
		"own_count":      len(u.OwnStories()),
	}).Info("User logged in")
	return u, nil
}

// Logout forgets the current user. It is safe to call when logged out.
func (s *Session) Logout() {
	s.mu.Lock()
	u := s.user
	s.user = nil
	s.mu.Unlock()
	if u != nil {
		s.log.WithField("username", u.Username).Info("User logged out")
	}
}

// RefreshUser re-reads the current account and replaces its favorites and
// own stories.
func (s *Session) RefreshUser(ctx context.Context) error {
	_, u := s.snapshot()
	if u == nil {
		return fmt.Errorf("refresh user: login required: %w", errs.ErrAuthorization)
	}
	acc, err := s.svc.FetchUser(ctx, u.Token(), u.Username)
	if err != nil {
		return fmt.Errorf("refresh user: %w", err)
	}
	if !u.Replace(acc) {
		return fmt.Errorf("refresh user: service returned account %q for %q: %w", acc.Username, u.Username, errs.ErrConsistency)
	}
	return nil
}

// Submit adds a story as the current user and records it among the
// user's own stories.
func (s *Session) Submit(ctx context.Context, data domain.NewStory) (domain.Story, error) {
	c, u := s.snapshot()
	if u == nil {
		return domain.Story{}, fmt.Errorf("submit: login required: %w", errs.ErrAuthorization)
	}
	if c == nil {
		return domain.Story{}, fmt.Errorf("submit: stories not loaded: %w", errs.ErrNotFound)
	}
	data.Username = u.Username

	created, err := c.AddStory(ctx, u, data)
	if err != nil {
		return domain.Story{}, err
	}
	switch {
	case created.Username != u.Username:
		s.log.WithFields(logrus.Fields{"story_id": created.ID, "submitter": created.Username}).
			WithError(errs.ErrConsistency).Warn("Service attributed the new story to another user")
	case c.Contains(created.ID):
		u.AddOwnStory(created)
	}
	return created, nil
}

// Delete removes a story and prunes it from the user's favorites and own
// stories.
func (s *Session) Delete(ctx context.Context, storyID string) error {
	c, u := s.snapshot()
	if c == nil {
		return fmt.Errorf("delete: stories not loaded: %w", errs.ErrNotFound)
	}
	if u == nil {
		return fmt.Errorf("delete: login required: %w", errs.ErrAuthorization)
	}
	if err := c.RemoveStory(ctx, u, storyID); err != nil {
		return err
	}
	u.PruneDeletedStory(storyID)
	return nil
}

// ToggleFavorite flips the favorite status of the story with storyID,
// resolved through the live collection.
func (s *Session) ToggleFavorite(ctx context.Context, storyID string) (favorites.Result, error) {
	c, u := s.snapshot()
	if u == nil {
		return favorites.Result{StoryID: storyID}, fmt.Errorf("toggle favorite: login required: %w", errs.ErrAuthorization)
	}
	if c == nil {
		return favorites.Result{StoryID: storyID}, fmt.Errorf("toggle favorite: stories not loaded: %w", errs.ErrNotFound)
	}
	story, ok := c.Get(storyID)
	if !ok {
		return favorites.Result{StoryID: storyID}, fmt.Errorf("toggle favorite %s: %w", storyID, errs.ErrNotFound)
	}
	return s.favorites.Toggle(ctx, u, story)
}

// NextFavoriteState is the state a view may show while ToggleFavorite is
// in flight.
func (s *Session) NextFavoriteState(storyID string) (favorites.State, bool) {
	c, u := s.snapshot()
	if c == nil || u == nil {
		return favorites.NotFavorite, false
	}
	story, ok := c.Get(storyID)
	if !ok {
		return favorites.NotFavorite, false
	}
	return s.favorites.Next(u, story), true
}

// AllStories renders the whole collection.
func (s *Session) AllStories() []StoryView {
	c, u := s.snapshot()
	if c == nil {
		return []StoryView{}
	}
	all := c.Stories()
	out := make([]StoryView, 0, len(all))
	for _, st := range all {
		out = append(out, view(st, u))
	}
	return out
}

// Favorites renders the user's favorites, resolved through the collection.
func (s *Session) Favorites() []StoryView {
	c, u := s.snapshot()
	if u == nil {
		return []StoryView{}
	}
	return s.resolve(c, u, u.Favorites(), "favorites")
}

// OwnStories renders the user's own stories, resolved through the
// collection.
func (s *Session) OwnStories() []StoryView {
	c, u := s.snapshot()
	if u == nil {
		return []StoryView{}
	}
	return s.resolve(c, u, u.OwnStories(), "own_stories")
}

// resolve maps member stories onto the live collection. A member the
// collection deleted is a consistency violation: it is logged, pruned from
// the user and not rendered. Members outside the loaded window are only
// left out.
func (s *Session) resolve(c *stories.Collection, u *domain.User, members []domain.Story, set string) []StoryView {
	out := make([]StoryView, 0, len(members))
	for _, m := range members {
		if c == nil {
			out = append(out, view(m, u))
			continue
		}
		live, ok := c.Get(m.ID)
		if ok {
			out = append(out, view(live, u))
			continue
		}
		log := s.log.WithFields(logrus.Fields{
			"username": u.Username,
			"story_id": m.ID,
			"set":      set,
		})
		if c.WasRemoved(m.ID) {
			log.WithError(errs.ErrConsistency).Warn("Pruning deleted story from the user")
			u.PruneDeletedStory(m.ID)
			continue
		}
		log.Debug("Story outside the loaded stories, not rendered")
	}
	return out
}

func view(st domain.Story, u *domain.User) StoryView {
	v := StoryView{Story: st}
	if u != nil {
		v.ShowFavorite = true
		v.Favorite = u.IsFavorite(st)
		v.Deletable = u.IsOwnStory(st.ID)
	}
	return v
}
