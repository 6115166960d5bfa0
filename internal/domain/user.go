package domain

import "sync"

// User is the authenticated principal of a session. It owns two membership
// sets, favorites and own stories, keyed by story ID. User never talks to
// the network: callers commit a delta only after the service confirmed it.
type User struct {
	Username string
	Name     string

	token string

	mu         sync.RWMutex
	favorites  storySet
	ownStories storySet
}

// NewUser builds a User from an account returned by the service. Own
// stories submitted by someone else are dropped.
func NewUser(acc Account) *User {
	u := &User{
		Username: acc.Username,
		Name:     acc.Name,
		token:    acc.Token,
	}
	u.reset(acc)
	return u
}

func (u *User) reset(acc Account) {
	u.favorites = storySet{}
	for _, s := range acc.Favorites {
		u.favorites.append(s)
	}
	u.ownStories = storySet{}
	for _, s := range acc.OwnStories {
		if s.Username == u.Username {
			u.ownStories.append(s)
		}
	}
}

// Token returns the session token used to authorize mutations.
func (u *User) Token() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.token
}

// Replace swaps both membership sets for the ones in acc, keeping the
// current token when acc carries none. It refuses another account.
func (u *User) Replace(acc Account) bool {
	if acc.Username != u.Username {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if acc.Token != "" {
		u.token = acc.Token
	}
	u.reset(acc)
	return true
}

// IsFavorite reports whether story is among the user's favorites.
func (u *User) IsFavorite(story Story) bool {
	return u.IsFavoriteID(story.ID)
}

// IsFavoriteID reports whether the story with id is a favorite.
func (u *User) IsFavoriteID(id string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.favorites.has(id)
}

// IsOwnStory reports whether the story with id was submitted by the user.
func (u *User) IsOwnStory(id string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ownStories.has(id)
}

// Favorites returns a copy of the favorites, most recently added first.
func (u *User) Favorites() []Story {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.favorites.list()
}

// OwnStories returns a copy of the user's stories, newest first.
func (u *User) OwnStories() []Story {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ownStories.list()
}

// CommitFavorite records a confirmed favorite. It reports false when the
// story was already a favorite.
func (u *User) CommitFavorite(story Story) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.favorites.prepend(story)
}

// CommitUnfavorite records a confirmed unfavorite. It reports false when
// the story was not a favorite.
func (u *User) CommitUnfavorite(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.favorites.remove(id)
}

// AddOwnStory prepends a story the user just submitted. Stories from
// another submitter and duplicates are refused.
func (u *User) AddOwnStory(story Story) bool {
	if story.Username != u.Username {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ownStories.prepend(story)
}

// PruneDeletedStory removes id from both favorites and own stories.
// Removing an absent id is a no-op.
func (u *User) PruneDeletedStory(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.favorites.remove(id)
	u.ownStories.remove(id)
}

// storySet is an ordered set of stories keyed by ID.
type storySet struct {
	items []Story
	index map[string]struct{}
}

func (s *storySet) has(id string) bool {
	_, ok := s.index[id]
	return ok
}

func (s *storySet) append(story Story) bool {
	if s.has(story.ID) {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	s.index[story.ID] = struct{}{}
	s.items = append(s.items, story)
	return true
}

func (s *storySet) prepend(story Story) bool {
	if s.has(story.ID) {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	s.index[story.ID] = struct{}{}
	s.items = append([]Story{story}, s.items...)
	return true
}

func (s *storySet) remove(id string) bool {
	if !s.has(id) {
		return false
	}
	delete(s.index, id)
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			break
		}
	}
	return true
}

func (s *storySet) list() []Story {
	out := make([]Story, len(s.items))
	copy(out, s.items)
	return out
}
