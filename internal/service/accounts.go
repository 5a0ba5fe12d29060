package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/todoer/internal/model"
	"github.com/iliyamo/todoer/internal/queue"
	"github.com/iliyamo/todoer/internal/repository"
	"github.com/iliyamo/todoer/internal/utils"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown email,
// a wrong password or a deactivated account alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// usernameAttempts bounds how often account creation retries after losing
// a username race on the unique index.
const usernameAttempts = 3

// UserStore is the account persistence used by Accounts.
type UserStore interface {
	UsernameChecker
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, id uint64, hash string) error
	Delete(ctx context.Context, id uint64) error
}

// SocialStore persists links between users and external identities.
type SocialStore interface {
	GetByProviderUID(ctx context.Context, provider, uid string) (*model.SocialAccount, error)
	Create(ctx context.Context, a *model.SocialAccount) error
}

// EventPublisher announces new accounts.  *queue.Publisher implements it.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error
}

// ExternalIdentity is what an OAuth provider told us about a user.
type ExternalIdentity struct {
	Provider      string
	UID           string
	Email         string
	EmailVerified bool
	ExtraData     map[string]any
}

// Accounts creates and resolves local users.
type Accounts struct {
	users      UserStore
	social     SocialStore
	events     EventPublisher // nil disables signup events
	bcryptCost int
}

// NewAccounts wires the account service.  events may be nil.
func NewAccounts(users UserStore, social SocialStore, events EventPublisher, bcryptCost int) *Accounts {
	return &Accounts{users: users, social: social, events: events, bcryptCost: bcryptCost}
}

// Register creates a password account.  The username is generated; the
// email must be unused.
func (a *Accounts) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email/password required", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	hash, err := utils.HashPassword(password, a.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: password too long", ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{Email: email, PasswordHash: hash, IsActive: true}
	if err := a.createWithUsername(ctx, u); err != nil {
		return nil, err
	}
	a.announce(u, "")
	return u, nil
}

// Authenticate checks an email/password pair.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if utils.NeedsRehash(u.PasswordHash, a.bcryptCost) {
		if hash, err := utils.HashPassword(password, a.bcryptCost); err == nil {
			if err := a.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
				log.Printf("accounts: rehash password for %d failed: %v", u.ID, err)
			} else {
				u.PasswordHash = hash
			}
		}
	}
	return u, nil
}

// SignInExternal returns the local user for an external identity, creating
// one on first sign-in.  Resolution order: an existing link for
// (provider, uid); then an existing user whose email matches a verified
// provider email, which gets linked; otherwise a new passwordless user
// with a generated username and the provider's email.  created reports
// whether a user was created.
func (a *Accounts) SignInExternal(ctx context.Context, id ExternalIdentity) (u *model.User, created bool, err error) {
	if id.Provider == "" || id.UID == "" {
		return nil, false, fmt.Errorf("%w: provider and uid required", ErrValidation)
	}

	link, err := a.social.GetByProviderUID(ctx, id.Provider, id.UID)
	switch {
	case err == nil:
		linked, err := a.users.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, false, fmt.Errorf("load linked user %d: %w", link.UserID, err)
		}
		return linked, false, nil
	case !errors.Is(err, repository.ErrSocialAccountNotFound):
		return nil, false, fmt.Errorf("load social account: %w", err)
	}

	// copied so the caller's profile data is left untouched
	extra := make(map[string]any, len(id.ExtraData)+1)
	for k, v := range id.ExtraData {
		extra[k] = v
	}
	if _, ok := extra["email"]; !ok && id.Email != "" {
		extra["email"] = id.Email
	}

	if id.EmailVerified && id.Email != "" {
		existing, err := a.users.GetByEmail(ctx, id.Email)
		switch {
		case err == nil:
			if err := a.link(ctx, existing.ID, id, extra); err != nil {
				if errors.Is(err, repository.ErrSocialAccountExists) {
					return a.linkedUser(ctx, id)
				}
				return nil, false, err
			}
			return existing, false, nil
		case !errors.Is(err, repository.ErrUserNotFound):
			return nil, false, fmt.Errorf("load user by email: %w", err)
		}
	}

	u = &model.User{IsActive: true}
	PopulateUserEmail(u, extra)
	u.Email = repository.NormalizeEmail(u.Email)
	err = a.createWithUsername(ctx, u)
	if errors.Is(err, repository.ErrEmailExists) {
		// an unverified address that belongs to someone else is not ours to claim
		u.Email = ""
		err = a.createWithUsername(ctx, u)
	}
	if err != nil {
		return nil, false, err
	}
	if err := a.link(ctx, u.ID, id, extra); err != nil {
		// a user nobody can sign in as must not stay behind
		if derr := a.users.Delete(ctx, u.ID); derr != nil {
			log.Printf("accounts: remove unlinked user %d failed: %v", u.ID, derr)
		}
		if errors.Is(err, repository.ErrSocialAccountExists) {
			// a concurrent first sign-in won the link
			return a.linkedUser(ctx, id)
		}
		return nil, false, err
	}
	a.announce(u, id.Provider)
	return u, true, nil
}

func (a *Accounts) createWithUsername(ctx context.Context, u *model.User) error {
	for attempt := 1; ; attempt++ {
		name, err := GenerateUniqueUsername(ctx, a.users)
		if err != nil {
			return err
		}
		u.Username = name
		err = a.users.Create(ctx, u)
		if errors.Is(err, repository.ErrUsernameExists) && attempt < usernameAttempts {
			continue
		}
		if err != nil && !errors.Is(err, repository.ErrEmailExists) {
			return fmt.Errorf("create user: %w", err)
		}
		return err
	}
}

// linkedUser loads the user an existing (provider, uid) link points to.
func (a *Accounts) linkedUser(ctx context.Context, id ExternalIdentity) (*model.User, bool, error) {
	link, err := a.social.GetByProviderUID(ctx, id.Provider, id.UID)
	if err != nil {
		return nil, false, fmt.Errorf("load social account: %w", err)
	}
	u, err := a.users.GetByID(ctx, link.UserID)
	if err != nil {
		return nil, false, fmt.Errorf("load linked user %d: %w", link.UserID, err)
	}
	return u, false, nil
}

func (a *Accounts) link(ctx context.Context, userID uint64, id ExternalIdentity, extra map[string]any) error {
	acct := &model.SocialAccount{UserID: userID, Provider: id.Provider, UID: id.UID, ExtraData: extra}
	if err := a.social.Create(ctx, acct); err != nil {
		return fmt.Errorf("link %s account: %w", id.Provider, err)
	}
	return nil
}

// announce publishes a signup event in the background; failures are only
// logged.
func (a *Accounts) announce(u *model.User, provider string) {
	if a.events == nil {
		return
	}
	ev := queue.UserRegisteredEvent{
		UserID:       u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Provider:     provider,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.events.PublishUserRegistered(ctx, ev); err != nil {
			log.Printf("accounts: publish user.registered for %d failed: %v", ev.UserID, err)
		}
	}()
}
