package bot

import (
	"fmt"
	"strings"

	"storykeeper/internal/domain"
	"storykeeper/internal/errs"
)

// Bot commands.
const (
	cmdStart     = "/start"
	cmdHelp      = "/help"
	cmdStories   = "/stories"
	cmdFavorites = "/favorites"
	cmdMine      = "/mine"
	cmdLogin     = "/login"
	cmdSignup    = "/signup"
	cmdLogout    = "/logout"
	cmdSubmit    = "/submit"
	cmdDelete    = "/delete"
	cmdFav       = "/fav"
)

// favCallbackPrefix prefixes inline button data that toggles a favorite.
const favCallbackPrefix = "fav:"

const helpText = `Commands:
/stories - all stories
/favorites - your favorite stories
/mine - stories you submitted
/login <username> <password>
/signup <username> <password> <name>
/logout
/submit <url> [| title [| author]]
/delete <storyId>
/fav <storyId> - toggle a favorite`

// parseCommand splits "/cmd@bot rest" into "/cmd" and "rest". ok is false
// for text that is not a command.
func parseCommand(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, args, _ = strings.Cut(text, " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// parseLogin reads "<username> <password>".
func parseLogin(args string) (domain.Credentials, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return domain.Credentials{}, fmt.Errorf("use %s <username> <password>: %w", cmdLogin, errs.ErrValidation)
	}
	return domain.Credentials{Username: fields[0], Password: fields[1]}, nil
}

// parseSignup reads "<username> <password> <name...>".
func parseSignup(args string) (domain.Credentials, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return domain.Credentials{}, fmt.Errorf("use %s <username> <password> <name>: %w", cmdSignup, errs.ErrValidation)
	}
	return domain.Credentials{
		Username: fields[0],
		Password: fields[1],
		Name:     strings.Join(fields[2:], " "),
	}, nil
}

// parseSubmit reads "<url> [| title [| author]]". Missing parts come back
// empty and are filled in by the caller.
func parseSubmit(args string) (domain.NewStory, error) {
	parts := strings.SplitN(args, "|", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return domain.NewStory{}, fmt.Errorf("use %s <url> [| title [| author]]: %w", cmdSubmit, errs.ErrValidation)
	}
	if err := domain.ValidateURL(parts[0]); err != nil {
		return domain.NewStory{}, err
	}

	data := domain.NewStory{URL: parts[0]}
	if len(parts) > 1 {
		data.Title = parts[1]
	}
	if len(parts) > 2 {
		data.Author = parts[2]
	}
	return data, nil
}

// parseStoryID reads a single story id argument.
func parseStoryID(cmd, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return "", fmt.Errorf("use %s <storyId>: %w", cmd, errs.ErrValidation)
	}
	return fields[0], nil
}
