package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
)

// ErrUserExists is returned by CreateUser for a taken username.
var ErrUserExists = fmt.Errorf("username already taken: %w", errs.ErrValidation)

const (
	storyPrefix = "story:"
	userPrefix  = "user:"
)

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db       *badger.DB
	inMemory bool
	log      logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath, or a purely in-memory
// database when inMemory is set (dbPath is then ignored).
func NewBadgerRepository(dbPath string, inMemory bool, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithFields(logrus.Fields{"path": dbPath, "in_memory": inMemory}).Info("BadgerDB opened")

	return &BadgerRepository{
		db:       db,
		inMemory: inMemory,
		log:      logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// storyKey format: story:{storyID}
func storyKey(id string) []byte {
	return []byte(storyPrefix + id)
}

// userKey format: user:{username}
func userKey(username string) []byte {
	return []byte(userPrefix + username)
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return txn.SetEntry(badger.NewEntry(key, b))
}

// SaveStory stores or replaces a story.
func (r *BadgerRepository) SaveStory(ctx context.Context, story domain.Story) error {
	log := r.log.WithFields(logrus.Fields{"story_id": story.ID, "username": story.Username})

	if story.CreatedAt.IsZero() {
		story.CreatedAt = time.Now().UTC()
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, storyKey(story.ID), story)
	})
	if err != nil {
		log.WithError(err).Error("Failed to save story to BadgerDB")
		return fmt.Errorf("failed to save story: %w", err)
	}
	log.Debug("Story saved")
	return nil
}

// GetStory returns the story with id.
func (r *BadgerRepository) GetStory(ctx context.Context, id string) (domain.Story, error) {
	var story domain.Story
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, storyKey(id), &story)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Story{}, fmt.Errorf("story %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return domain.Story{}, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return story, nil
}

// ListStories returns up to limit stories, newest first.
func (r *BadgerRepository) ListStories(ctx context.Context, limit int) ([]domain.Story, error) {
	stories, err := r.scanStories(func(domain.Story) bool { return true })
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(stories) > limit {
		stories = stories[:limit]
	}
	return stories, nil
}

// ListStoriesByUser returns stories submitted by username, newest first.
func (r *BadgerRepository) ListStoriesByUser(ctx context.Context, username string) ([]domain.Story, error) {
	return r.scanStories(func(s domain.Story) bool { return s.Username == username })
}

func (r *BadgerRepository) scanStories(keep func(domain.Story) bool) ([]domain.Story, error) {
	stories := []domain.Story{}

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(storyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var s domain.Story
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("failed to unmarshal story data for key %s: %w", string(item.Key()), err)
				}
				if keep(s) {
					stories = append(stories, s)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to scan stories in BadgerDB")
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	sort.SliceStable(stories, func(i, j int) bool {
		if stories[i].CreatedAt.Equal(stories[j].CreatedAt) {
			return stories[i].ID > stories[j].ID
		}
		return stories[i].CreatedAt.After(stories[j].CreatedAt)
	})
	return stories, nil
}

// DeleteStory removes the story and every favorite pointing at it in one
// transaction.
func (r *BadgerRepository) DeleteStory(ctx context.Context, id string) error {
	log := r.log.WithField("story_id", id)

	pruned := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(storyKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(storyKey(id)); err != nil {
			return err
		}

		var users []UserRecord
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var u UserRecord
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &u) }); err != nil {
				it.Close()
				return err
			}
			if removeID(&u.Favorites, id) {
				users = append(users, u)
			}
		}
		it.Close()

		for _, u := range users {
			if err := setJSON(txn, userKey(u.Username), u); err != nil {
				return err
			}
		}
		pruned = len(users)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("story %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		log.WithError(err).Error("Failed to delete story from BadgerDB")
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}

	log.WithField("favorites_pruned", pruned).Info("Story deleted")
	return nil
}

// CreateUser stores a new account.
func (r *BadgerRepository) CreateUser(ctx context.Context, user UserRecord) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(user.Username))
		if err == nil {
			return ErrUserExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, userKey(user.Username), user)
	})
	if err != nil {
		if !errors.Is(err, ErrUserExists) {
			r.log.WithError(err).WithField("username", user.Username).Error("Failed to create user")
		}
		return fmt.Errorf("create user %s: %w", user.Username, err)
	}
	r.log.WithField("username", user.Username).Info("User created")
	return nil
}

// GetUser returns the account for username.
func (r *BadgerRepository) GetUser(ctx context.Context, username string) (UserRecord, error) {
	var u UserRecord
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(username), &u)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return UserRecord{}, fmt.Errorf("user %s: %w", username, errs.ErrNotFound)
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return u, nil
}

// AddFavorite marks storyID as a favorite of username.
func (r *BadgerRepository) AddFavorite(ctx context.Context, username, storyID string) error {
	return r.updateFavorites(username, storyID, func(u *UserRecord) bool {
		for _, id := range u.Favorites {
			if id == storyID {
				return false
			}
		}
		u.Favorites = append([]string{storyID}, u.Favorites...)
		return true
	})
}

// RemoveFavorite drops storyID from the favorites of username.
func (r *BadgerRepository) RemoveFavorite(ctx context.Context, username, storyID string) error {
	return r.updateFavorites(username, storyID, func(u *UserRecord) bool {
		return removeID(&u.Favorites, storyID)
	})
}

func (r *BadgerRepository) updateFavorites(username, storyID string, change func(*UserRecord) bool) error {
	log := r.log.WithFields(logrus.Fields{"username": username, "story_id": storyID})

	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(storyKey(storyID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("story %s: %w", storyID, errs.ErrNotFound)
			}
			return err
		}
		var u UserRecord
		if err := getJSON(txn, userKey(username), &u); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("user %s: %w", username, errs.ErrNotFound)
			}
			return err
		}
		if !change(&u) {
			return nil
		}
		return setJSON(txn, userKey(username), u)
	})
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			log.WithError(err).Error("Failed to update favorites")
		}
		return fmt.Errorf("update favorites: %w", err)
	}
	log.Debug("Favorites updated")
	return nil
}

func removeID(list *[]string, id string) bool {
	for i, v := range *list {
		if v == id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

// RunGC reclaims value-log space every interval until ctx is cancelled.
// It returns immediately for in-memory databases.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	if r.inMemory {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Info("BadgerDB GC completed successfully")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: No rewrite needed")
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Info("Stopping BadgerDB GC routine due to context cancellation")
			return
		}
	}
}

// --- BadgerDB Internal Logger ---

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
