package bot

import (
	"fmt"
	"strings"

	"storykeeper/internal/errs"
	"storykeeper/internal/favorites"
	"storykeeper/internal/session"
)

const (
	emptyStories   = "No stories yet!"
	emptyFavorites = "No favorites added!"
	emptyOwn       = "No stories added by user yet!"

	starOn  = "★"
	starOff = "☆"
)

// maxButtons caps the favorite buttons attached to one list.
const maxButtons = 20

// listKind names the list a favorite button was attached to, so a press
// can redraw that list.
type listKind string

const (
	listAll       listKind = "a"
	listFavorites listKind = "f"
	listMine      listKind = "m"
)

// favData encodes the callback data of a favorite button.
func favData(kind listKind, storyID string) string {
	return favCallbackPrefix + string(kind) + ":" + storyID
}

// parseFavData is the inverse of favData.
func parseFavData(data string) (listKind, string, bool) {
	rest, ok := strings.CutPrefix(data, favCallbackPrefix)
	if !ok {
		return "", "", false
	}
	kind, id, ok := strings.Cut(rest, ":")
	if !ok || id == "" {
		return "", "", false
	}
	switch listKind(kind) {
	case listAll, listFavorites, listMine:
		return listKind(kind), id, true
	}
	return "", "", false
}

// Button is an inline button that sends Data back as a callback.
type Button struct {
	Label string
	Data  string
}

// Reply is what the bot sends back for one update.
type Reply struct {
	Text    string
	Buttons []Button
}

// CallbackReply answers a button press. List, when set, replaces the
// message the button belongs to.
type CallbackReply struct {
	Notice string
	List   *Reply
}

// renderStories lists views in order, or returns empty when there are none.
// Favorite buttons point back at kind.
func renderStories(views []session.StoryView, empty string, kind listKind) Reply {
	if len(views) == 0 {
		return Reply{Text: empty}
	}

	var b strings.Builder
	var buttons []Button
	for i, v := range views {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderStory(v))

		if v.ShowFavorite && len(buttons) < maxButtons {
			buttons = append(buttons, Button{
				Label: fmt.Sprintf("%s %s", star(v.Favorite), truncate(v.Story.Title, 32)),
				Data:  favData(kind, v.Story.ID),
			})
		}
	}
	return Reply{Text: b.String(), Buttons: buttons}
}

func renderStory(v session.StoryView) string {
	var b strings.Builder
	if v.ShowFavorite {
		b.WriteString(star(v.Favorite))
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "%s (%s)\n", v.Story.Title, v.Story.HostName())
	fmt.Fprintf(&b, "%s\n", v.Story.URL)
	fmt.Fprintf(&b, "by %s, posted by %s\n", v.Story.Author, v.Story.Username)
	fmt.Fprintf(&b, "id: %s", v.Story.ID)
	if v.Deletable {
		b.WriteString(" (yours, /delete " + v.Story.ID + ")")
	}
	return b.String()
}

func renderToggle(res favorites.Result, title string) string {
	if res.Current == favorites.Favorite {
		return fmt.Sprintf("%s Added %q to your favorites.", starOn, title)
	}
	return fmt.Sprintf("%s Removed %q from your favorites.", starOff, title)
}

func star(on bool) string {
	if on {
		return starOn
	}
	return starOff
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// errorMessage turns an operation failure into text for the user.
func errorMessage(err error) string {
	switch errs.Kind(err) {
	case "validation":
		return "Invalid request: " + detail(err, errs.ErrValidation)
	case "authorization":
		return "Not allowed: " + detail(err, errs.ErrAuthorization) + ". Use /login if you have not."
	case "not_found":
		return "That story no longer exists. Try /stories to refresh."
	case "in_flight":
		return "Still working on your last request for that story."
	case "transport":
		return "The story service is unreachable right now, please try again."
	default:
		return "Something went wrong, please try again."
	}
}

// detail returns the innermost message of err without sentinel suffixes
// or operation prefixes.
func detail(err, sentinel error) string {
	msg := err.Error()
	for strings.HasSuffix(msg, ": "+sentinel.Error()) {
		msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
	}
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	return msg
}
