// Package favorites implements the favorite toggle protocol: read the
// current membership, ask the service for the opposite, and commit the
// change to the user only once the service confirmed it.
package favorites

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
	"storykeeper/internal/remote"
)

// State is the favorite status of one story for one user.
type State int

const (
	NotFavorite State = iota
	Favorite
)

func (s State) String() string {
	if s == Favorite {
		return "favorite"
	}
	return "not_favorite"
}

// StateOf returns the state matching a membership flag.
func StateOf(isFavorite bool) State {
	if isFavorite {
		return Favorite
	}
	return NotFavorite
}

// Result describes the outcome of a toggle. On failure Current equals
// Previous.
type Result struct {
	StoryID  string
	Previous State
	Current  State
}

// Changed reports whether the toggle moved the story to a new state.
func (r Result) Changed() bool {
	return r.Previous != r.Current
}

// StoryLookup tells the controller whether a story still exists.
type StoryLookup interface {
	Contains(id string) bool
}

// Controller toggles favorites. Concurrent toggles for the same user and
// story are not coalesced: while one is outstanding, the next one fails
// with errs.ErrInFlight.
type Controller struct {
	svc     remote.StoryService
	stories StoryLookup
	log     logrus.FieldLogger

	mu       sync.Mutex
	inFlight map[flightKey]struct{}
}

type flightKey struct {
	username string
	storyID  string
}

// NewController creates a controller. stories may be nil, in which case
// commits are not re-validated against a collection.
func NewController(svc remote.StoryService, stories StoryLookup, logger logrus.FieldLogger) *Controller {
	return &Controller{
		svc:      svc,
		stories:  stories,
		log:      logger.WithField("component", "favorites"),
		inFlight: make(map[flightKey]struct{}),
	}
}

// SetStories swaps the collection used for commit re-validation.
func (c *Controller) SetStories(stories StoryLookup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stories = stories
}

// Next returns the state a view can render optimistically before Toggle
// resolves.
func (c *Controller) Next(user *domain.User, story domain.Story) State {
	if user.IsFavorite(story) {
		return NotFavorite
	}
	return Favorite
}

// Toggle flips the favorite status of story for user.
func (c *Controller) Toggle(ctx context.Context, user *domain.User, story domain.Story) (Result, error) {
	if user == nil || user.Token() == "" {
		return Result{StoryID: story.ID}, fmt.Errorf("toggle favorite: login required: %w", errs.ErrAuthorization)
	}

	prev := StateOf(user.IsFavorite(story))
	res := Result{StoryID: story.ID, Previous: prev, Current: prev}

	key := flightKey{username: user.Username, storyID: story.ID}
	if !c.acquire(key) {
		return res, fmt.Errorf("toggle favorite %s: %w", story.ID, errs.ErrInFlight)
	}
	defer c.release(key)

	log := c.log.WithFields(logrus.Fields{"username": user.Username, "story_id": story.ID, "from": prev.String()})

	if prev == Favorite {
		if err := c.svc.Unfavorite(ctx, user.Token(), user.Username, story.ID); err != nil {
			log.WithError(err).Warn("Unfavorite failed")
			return res, fmt.Errorf("toggle favorite %s: %w", story.ID, err)
		}
		user.CommitUnfavorite(story.ID)
		res.Current = NotFavorite
		log.Info("Story unfavorited")
		return res, nil
	}

	if err := c.svc.Favorite(ctx, user.Token(), user.Username, story.ID); err != nil {
		log.WithError(err).Warn("Favorite failed")
		return res, fmt.Errorf("toggle favorite %s: %w", story.ID, err)
	}
	if c.removed(story.ID) {
		log.WithError(errs.ErrConsistency).Warn("Story deleted while favoriting, not committing")
		return res, nil
	}
	user.CommitFavorite(story)
	res.Current = Favorite
	log.Info("Story favorited")
	return res, nil
}

func (c *Controller) removed(id string) bool {
	c.mu.Lock()
	stories := c.stories
	c.mu.Unlock()
	return stories != nil && !stories.Contains(id)
}

func (c *Controller) acquire(key flightKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		return false
	}
	c.inFlight[key] = struct{}{}
	return true
}

func (c *Controller) release(key flightKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}
