package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
	"storykeeper/internal/remote"
	"storykeeper/internal/scraper"
	"storykeeper/internal/session"
)

// Dispatcher turns chat messages into session operations. Each Telegram
// user gets an independent session.
type Dispatcher struct {
	svc    remote.StoryService
	titles scraper.TitleFetcher
	log    logrus.FieldLogger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

type chatSession struct {
	*session.Session
	lastSeen time.Time
}

// NewDispatcher creates a dispatcher. A nil titles disables title lookup.
func NewDispatcher(svc remote.StoryService, titles scraper.TitleFetcher, logger logrus.FieldLogger) *Dispatcher {
	if titles == nil {
		titles = scraper.Disabled{}
	}
	return &Dispatcher{
		svc:      svc,
		titles:   titles,
		log:      logger.WithField("component", "dispatcher"),
		now:      time.Now,
		sessions: make(map[int64]*chatSession),
	}
}

// session returns the user's session, loading stories on first use. A
// session whose first load failed is not kept.
func (d *Dispatcher) session(ctx context.Context, userID int64) (*session.Session, error) {
	d.mu.Lock()
	cs, ok := d.sessions[userID]
	if ok {
		cs.lastSeen = d.now()
	}
	d.mu.Unlock()
	if ok {
		return cs.Session, nil
	}

	s := session.New(d.svc, d.log.WithField("user_id", userID))
	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.sessions[userID]; ok {
		return existing.Session, nil
	}
	d.sessions[userID] = &chatSession{Session: s, lastSeen: d.now()}
	return s, nil
}

// forget logs the user out and drops the session.
func (d *Dispatcher) forget(userID int64) {
	d.mu.Lock()
	cs, ok := d.sessions[userID]
	delete(d.sessions, userID)
	d.mu.Unlock()
	if ok {
		cs.Logout()
	}
}

// EvictIdle drops sessions unused for longer than maxIdle and returns how
// many were dropped.
func (d *Dispatcher) EvictIdle(maxIdle time.Duration) int {
	cutoff := d.now().Add(-maxIdle)

	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, cs := range d.sessions {
		if cs.lastSeen.Before(cutoff) {
			delete(d.sessions, id)
			n++
		}
	}
	if n > 0 {
		d.log.WithFields(logrus.Fields{"evicted": n, "active": len(d.sessions)}).Info("Evicted idle sessions")
	}
	return n
}

// RunEviction calls EvictIdle every interval until ctx is done.
func (d *Dispatcher) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.EvictIdle(maxIdle)
		}
	}
}

// HandleText runs one text message for userID and returns the reply.
func (d *Dispatcher) HandleText(ctx context.Context, userID int64, text string) Reply {
	name, args, ok := parseCommand(text)
	if !ok {
		return Reply{Text: "Send a command, or /help to list them."}
	}
	log := d.log.WithFields(logrus.Fields{"user_id": userID, "command": name})

	switch name {
	case cmdStart:
		return Reply{Text: "Welcome to storykeeper! Browse, submit and favorite stories.\n\n" + helpText}
	case cmdHelp:
		return Reply{Text: helpText}
	case cmdLogout:
		d.forget(userID)
		return Reply{Text: "Logged out."}
	}

	s, err := d.session(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to load stories")
		return Reply{Text: errorMessage(err)}
	}

	reply, err := d.run(ctx, s, name, args)
	if err != nil {
		log.WithError(err).WithField("kind", errs.Kind(err)).Info("Command failed")
		return Reply{Text: errorMessage(err)}
	}
	return reply
}

// HandleCallback toggles the favorite encoded in button data and redraws
// the list the button belongs to.
func (d *Dispatcher) HandleCallback(ctx context.Context, userID int64, data string) CallbackReply {
	kind, storyID, ok := parseFavData(data)
	if !ok {
		return CallbackReply{Notice: "Unknown action."}
	}
	log := d.log.WithFields(logrus.Fields{"user_id": userID, "story_id": storyID})

	s, err := d.session(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("Failed to load stories")
		return CallbackReply{Notice: errorMessage(err)}
	}
	notice, err := d.toggle(ctx, s, storyID)
	if err != nil {
		log.WithError(err).WithField("kind", errs.Kind(err)).Info("Favorite button failed")
		return CallbackReply{Notice: errorMessage(err)}
	}

	var list Reply
	switch kind {
	case listFavorites:
		list = renderStories(s.Favorites(), emptyFavorites, kind)
	case listMine:
		list = renderStories(s.OwnStories(), emptyOwn, kind)
	default:
		list = renderStories(s.AllStories(), emptyStories, kind)
	}
	return CallbackReply{Notice: notice, List: &list}
}

func (d *Dispatcher) toggle(ctx context.Context, s *session.Session, storyID string) (string, error) {
	res, err := s.ToggleFavorite(ctx, storyID)
	if err != nil {
		return "", err
	}
	title := storyID
	if st, ok := s.Stories().Get(storyID); ok {
		title = st.Title
	}
	return renderToggle(res, title), nil
}

func (d *Dispatcher) run(ctx context.Context, s *session.Session, name, args string) (Reply, error) {
	switch name {
	case cmdStories:
		if err := s.Reload(ctx); err != nil {
			return Reply{}, err
		}
		return renderStories(s.AllStories(), emptyStories, listAll), nil

	case cmdFavorites:
		if s.CurrentUser() == nil {
			return Reply{}, fmt.Errorf("favorites: login required: %w", errs.ErrAuthorization)
		}
		return renderStories(s.Favorites(), emptyFavorites, listFavorites), nil

	case cmdMine:
		if s.CurrentUser() == nil {
			return Reply{}, fmt.Errorf("own stories: login required: %w", errs.ErrAuthorization)
		}
		return renderStories(s.OwnStories(), emptyOwn, listMine), nil

	case cmdLogin:
		creds, err := parseLogin(args)
		if err != nil {
			return Reply{}, err
		}
		u, err := s.Login(ctx, creds)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Logged in as %s (%s).", u.Username, u.Name)}, nil

	case cmdSignup:
		creds, err := parseSignup(args)
		if err != nil {
			return Reply{}, err
		}
		u, err := s.Signup(ctx, creds)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Welcome, %s! You are logged in as %s.", u.Name, u.Username)}, nil

	case cmdSubmit:
		return d.submit(ctx, s, args)

	case cmdDelete:
		id, err := parseStoryID(cmdDelete, args)
		if err != nil {
			return Reply{}, err
		}
		if err := s.Delete(ctx, id); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Story deleted."}, nil

	case cmdFav:
		id, err := parseStoryID(cmdFav, args)
		if err != nil {
			return Reply{}, err
		}
		notice, err := d.toggle(ctx, s, id)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: notice}, nil

	default:
		return Reply{Text: "Unknown command. " + helpText}, nil
	}
}

// submit fills a missing title from the page and a missing author from the
// user's name before adding the story.
func (d *Dispatcher) submit(ctx context.Context, s *session.Session, args string) (Reply, error) {
	u := s.CurrentUser()
	if u == nil {
		return Reply{}, fmt.Errorf("submit: login required: %w", errs.ErrAuthorization)
	}
	data, err := parseSubmit(args)
	if err != nil {
		return Reply{}, err
	}

	if data.Title == "" {
		data.Title, err = d.titles.FetchTitle(ctx, data.URL)
		if err != nil {
			d.log.WithError(err).WithField("url", data.URL).Warn("Title lookup failed")
			if !errors.Is(err, scraper.ErrNoTitle) {
				return Reply{}, fmt.Errorf("could not read the page title, add one after a |: %w", errs.ErrValidation)
			}
			data.Title = (domain.Story{URL: data.URL}).HostName()
		}
	}
	if data.Author == "" {
		data.Author = u.Name
	}

	story, err := s.Submit(ctx, data)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Story added:\n\n" + renderStory(session.StoryView{
		Story:        story,
		ShowFavorite: true,
		Favorite:     u.IsFavorite(story),
		Deletable:    true,
	})}, nil
}
