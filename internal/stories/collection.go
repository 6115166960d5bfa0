// Package stories holds the session-scoped cache of every known story and
// mediates creation and deletion against the remote service.
package stories

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
	"storykeeper/internal/remote"
)

// Collection is the ordered, newest-first list of stories one session
// knows about. State changes only after the service confirmed them.
type Collection struct {
	svc remote.StoryService
	log logrus.FieldLogger

	mu      sync.RWMutex
	stories []domain.Story
	index   map[string]int
	removed map[string]struct{}

	// seq counts confirmed adds; added maps a story ID to the seq of its
	// commit so Reload can tell which adds the fetch may have missed.
	seq   uint64
	added map[string]uint64
}

// GetStories fetches every story and returns a new collection holding them
// in the service's order. On error no collection is returned.
func GetStories(ctx context.Context, svc remote.StoryService, logger logrus.FieldLogger) (*Collection, error) {
	log := logger.WithField("component", "stories")

	fetched, err := svc.FetchAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to fetch stories")
		return nil, fmt.Errorf("get stories: %w", err)
	}

	c := &Collection{
		svc:     svc,
		log:     log,
		removed: make(map[string]struct{}),
		added:   make(map[string]uint64),
	}
	c.fill(nil, fetched)

	log.WithField("story_count", len(c.stories)).Info("Stories loaded")
	return c, nil
}

// Reload refetches the stories into the same collection. Stories deleted
// through the collection stay out even when the fetch still lists them,
// and stories added while the fetch ran stay in. On error nothing changes.
func (c *Collection) Reload(ctx context.Context) error {
	c.mu.RLock()
	start := c.seq
	c.mu.RUnlock()

	fetched, err := c.svc.FetchAll(ctx)
	if err != nil {
		c.log.WithError(err).Error("Failed to reload stories")
		return fmt.Errorf("reload stories: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var late []domain.Story
	for _, s := range c.stories {
		if c.added[s.ID] > start {
			late = append(late, s)
		}
	}
	c.fill(late, fetched)

	c.log.WithFields(logrus.Fields{
		"story_count": len(c.stories),
		"late_adds":   len(late),
	}).Info("Stories reloaded")
	return nil
}

// fill replaces the contents with late followed by fetched, skipping
// tombstoned and repeated IDs. Callers hold mu or own c exclusively.
func (c *Collection) fill(late, fetched []domain.Story) {
	c.stories = make([]domain.Story, 0, len(late)+len(fetched))
	c.index = make(map[string]int, len(late)+len(fetched))
	for _, s := range late {
		c.index[s.ID] = len(c.stories)
		c.stories = append(c.stories, s)
	}
	for _, s := range fetched {
		if _, gone := c.removed[s.ID]; gone {
			continue
		}
		if _, dup := c.index[s.ID]; dup {
			if c.added[s.ID] == 0 {
				c.log.WithField("story_id", s.ID).WithError(errs.ErrConsistency).Warn("Service returned a duplicate story, keeping the first")
			}
			continue
		}
		c.index[s.ID] = len(c.stories)
		c.stories = append(c.stories, s)
	}
}

// Stories returns a copy of the stories, newest first.
func (c *Collection) Stories() []domain.Story {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Story, len(c.stories))
	copy(out, c.stories)
	return out
}

// Len returns the number of stories.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stories)
}

// Get looks a story up by ID.
func (c *Collection) Get(id string) (domain.Story, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return domain.Story{}, false
	}
	return c.stories[i], true
}

// Contains reports whether a story with id is present.
func (c *Collection) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[id]
	return ok
}

// WasRemoved reports whether id was deleted through this collection.
func (c *Collection) WasRemoved(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.removed[id]
	return ok
}

// AddStory submits data on behalf of user and prepends the story the
// service returns. Nothing is inserted unless the service accepted it.
func (c *Collection) AddStory(ctx context.Context, user *domain.User, data domain.NewStory) (domain.Story, error) {
	if user == nil || user.Token() == "" {
		return domain.Story{}, fmt.Errorf("add story: login required: %w", errs.ErrAuthorization)
	}
	data = data.Normalize()
	if err := data.Validate(); err != nil {
		return domain.Story{}, fmt.Errorf("add story: %w", err)
	}

	log := c.log.WithFields(logrus.Fields{"username": user.Username, "url": data.URL})
	log.Info("Submitting story")

	created, err := c.svc.Create(ctx, user.Token(), data)
	if err != nil {
		log.WithError(err).Warn("Story submission failed")
		return domain.Story{}, fmt.Errorf("add story: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, gone := c.removed[created.ID]; gone {
		log.WithField("story_id", created.ID).WithError(errs.ErrConsistency).Warn("Created story was deleted before the commit, not inserting")
		return created, nil
	}
	if _, dup := c.index[created.ID]; dup {
		log.WithField("story_id", created.ID).WithError(errs.ErrConsistency).Warn("Created story already present, not inserting twice")
		return created, nil
	}
	c.stories = append([]domain.Story{created}, c.stories...)
	c.reindex()
	c.seq++
	c.added[created.ID] = c.seq

	log.WithField("story_id", created.ID).Info("Story added")
	return created, nil
}

// RemoveStory deletes the story with storyID. It fails with
// errs.ErrNotFound before any remote call when the story is unknown
// locally. The caller prunes user membership separately.
func (c *Collection) RemoveStory(ctx context.Context, user *domain.User, storyID string) error {
	if !c.Contains(storyID) {
		return fmt.Errorf("remove story %s: %w", storyID, errs.ErrNotFound)
	}
	if user == nil || user.Token() == "" {
		return fmt.Errorf("remove story %s: login required: %w", storyID, errs.ErrAuthorization)
	}

	log := c.log.WithFields(logrus.Fields{"username": user.Username, "story_id": storyID})
	log.Info("Deleting story")

	if err := c.svc.Delete(ctx, user.Token(), storyID); err != nil {
		log.WithError(err).Warn("Story deletion failed")
		return fmt.Errorf("remove story %s: %w", storyID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed[storyID] = struct{}{}
	i, ok := c.index[storyID]
	if !ok {
		// Another handler removed it while the call was in flight.
		log.Debug("Story already gone at commit")
		return nil
	}
	c.stories = append(c.stories[:i:i], c.stories[i+1:]...)
	c.reindex()

	log.Info("Story deleted")
	return nil
}

// reindex rebuilds the ID index. Callers hold mu.
func (c *Collection) reindex() {
	c.index = make(map[string]int, len(c.stories))
	for i, s := range c.stories {
		c.index[s.ID] = i
	}
}
