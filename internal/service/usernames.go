package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/todoer/internal/model"
)

// UsernamePrefix starts every generated username.
const UsernamePrefix = "user_"

// UsernameChecker answers whether a username is already taken.
type UsernameChecker interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// randomToken returns 8 hex characters from a random UUID.
var randomToken = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GenerateUniqueUsername returns a username of the form user_<8 hex> that
// is not taken according to checker.  On collision it appends _1, _2, ...
// until a free name is found.  The check is advisory: the unique index on
// users.username settles a race between two concurrent signups.
func GenerateUniqueUsername(ctx context.Context, checker UsernameChecker) (string, error) {
	base := UsernamePrefix + randomToken()
	name := base
	for n := 1; ; n++ {
		taken, err := checker.UsernameExists(ctx, name)
		if err != nil {
			return "", fmt.Errorf("check username %s: %w", name, err)
		}
		if !taken {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, n)
	}
}

// PopulateUserEmail copies the email from an external account's data onto
// u when u has none.  An existing email is never overwritten and a missing
// or non-string value leaves u unchanged.
func PopulateUserEmail(u *model.User, extraData map[string]any) {
	if u.Email != "" {
		return
	}
	if email, ok := extraData["email"].(string); ok && email != "" {
		u.Email = email
	}
}
