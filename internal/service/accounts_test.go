package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/todoer/internal/model"
	"github.com/iliyamo/todoer/internal/repository"
)

func newTestAccounts() (*Accounts, *memUsers, *recordingPublisher) {
	users := newMemUsers()
	events := newRecordingPublisher()
	return NewAccounts(users, socialView{users}, events, bcrypt.MinCost), users, events
}

func waitEvent(t *testing.T, p *recordingPublisher) {
	t.Helper()
	select {
	case <-p.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a user.registered event")
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	a, _, events := newTestAccounts()
	ctx := context.Background()

	u, err := a.Register(ctx, " Alice@Example.com ", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "alice@example.com" || len(u.Username) != 13 || !u.HasUsablePassword() {
		t.Fatalf("unexpected user %+v", u)
	}
	waitEvent(t, events)

	if _, err := a.Register(ctx, "alice@example.com", "other"); !errors.Is(err, repository.ErrEmailExists) {
		t.Fatalf("duplicate Register = %v, want ErrEmailExists", err)
	}
	if _, err := a.Register(ctx, "", "pw"); !errors.Is(err, ErrValidation) {
		t.Fatalf("Register without email = %v, want ErrValidation", err)
	}

	got, err := a.Authenticate(ctx, "alice@example.com", "s3cret-pass")
	if err != nil || got.ID != u.ID {
		t.Fatalf("Authenticate = %+v, %v", got, err)
	}
	if _, err := a.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignInExternalCreatesThenReuses(t *testing.T) {
	a, users, events := newTestAccounts()
	ctx := context.Background()
	id := ExternalIdentity{
		Provider:  "google",
		UID:       "g-123",
		Email:     "new@example.com",
		ExtraData: map[string]any{"email": "new@example.com", "name": "New User"},
	}

	u, created, err := a.SignInExternal(ctx, id)
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if !created || u.Email != "new@example.com" || u.HasUsablePassword() {
		t.Fatalf("unexpected first sign-in %+v created=%v", u, created)
	}
	waitEvent(t, events)

	again, created, err := a.SignInExternal(ctx, id)
	if err != nil {
		t.Fatalf("second SignInExternal: %v", err)
	}
	if created || again.ID != u.ID {
		t.Fatalf("expected the same user, got %+v created=%v", again, created)
	}
	if len(users.users) != 1 || len(users.social) != 1 {
		t.Fatalf("expected 1 user and 1 link, got %d and %d", len(users.users), len(users.social))
	}
}

func TestSignInExternalLinksVerifiedEmail(t *testing.T) {
	a, users, _ := newTestAccounts()
	ctx := context.Background()
	existing, err := a.Register(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, created, err := a.SignInExternal(ctx, ExternalIdentity{
		Provider: "google", UID: "g-1", Email: "Alice@example.com", EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if created || u.ID != existing.ID {
		t.Fatalf("expected link to existing user, got %+v created=%v", u, created)
	}
	if users.social["google/g-1"].UserID != existing.ID {
		t.Fatal("social account not linked to existing user")
	}
}

func TestSignInExternalDoesNotClaimUnverifiedEmail(t *testing.T) {
	a, _, _ := newTestAccounts()
	ctx := context.Background()
	existing, err := a.Register(ctx, "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, created, err := a.SignInExternal(ctx, ExternalIdentity{
		Provider: "github", UID: "42", Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if !created || u.ID == existing.ID || u.Email != "" {
		t.Fatalf("expected a separate account without email, got %+v", u)
	}
}

func TestSignInExternalWithoutEmail(t *testing.T) {
	a, _, _ := newTestAccounts()
	u, created, err := a.SignInExternal(context.Background(), ExternalIdentity{Provider: "github", UID: "7"})
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if !created || u.Email != "" || u.Username == "" {
		t.Fatalf("unexpected user %+v", u)
	}

	if _, _, err := a.SignInExternal(context.Background(), ExternalIdentity{Provider: "github"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing uid = %v, want ErrValidation", err)
	}
}

func TestAuthenticateRehashesOnCostChange(t *testing.T) {
	a, users, _ := newTestAccounts()
	ctx := context.Background()

	u, err := a.Register(ctx, "carol@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	old := u.PasswordHash

	a.bcryptCost = bcrypt.MinCost + 1
	if _, err := a.Authenticate(ctx, "carol@example.com", "s3cret-pass"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	stored, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.PasswordHash == old {
		t.Fatal("expected the hash to be upgraded")
	}
	if cost, _ := bcrypt.Cost([]byte(stored.PasswordHash)); cost != bcrypt.MinCost+1 {
		t.Fatalf("stored cost = %d", cost)
	}
}

// brokenSocial fails every link attempt.
type brokenSocial struct{ socialView }

func (brokenSocial) Create(context.Context, *model.SocialAccount) error {
	return errors.New("link failed")
}

// lateSocial simulates losing the link race: a concurrent sign-in links
// the identity to winner just before our insert.
type lateSocial struct {
	socialView
	winner uint64
}

func (s lateSocial) Create(ctx context.Context, a *model.SocialAccount) error {
	won := *a
	won.UserID = s.winner
	if err := s.SocialCreate(ctx, &won); err != nil {
		return err
	}
	return s.SocialCreate(ctx, a)
}

func TestSignInExternalRemovesUserWhenLinkFails(t *testing.T) {
	users := newMemUsers()
	a := NewAccounts(users, brokenSocial{socialView{users}}, nil, bcrypt.MinCost)

	_, _, err := a.SignInExternal(context.Background(), ExternalIdentity{Provider: "google", UID: "g-1", Email: "x@example.com"})
	if err == nil {
		t.Fatal("expected the link error")
	}
	if n := users.count(); n != 0 {
		t.Fatalf("failed sign-in left %d user(s) behind", n)
	}
}

func TestSignInExternalReturnsWinnerOfLinkRace(t *testing.T) {
	users := newMemUsers()
	ctx := context.Background()
	winner := &model.User{Username: "user_0000aaaa", IsActive: true}
	if err := users.Create(ctx, winner); err != nil {
		t.Fatalf("seed winner: %v", err)
	}
	a := NewAccounts(users, lateSocial{socialView{users}, winner.ID}, nil, bcrypt.MinCost)

	u, created, err := a.SignInExternal(ctx, ExternalIdentity{Provider: "google", UID: "g-2"})
	if err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if created || u.ID != winner.ID {
		t.Fatalf("expected winner %d, got %+v created=%v", winner.ID, u, created)
	}
	if n := users.count(); n != 1 {
		t.Fatalf("expected only the winner to remain, got %d users", n)
	}
}

func TestSignInExternalLeavesCallerDataUntouched(t *testing.T) {
	a, _, _ := newTestAccounts()
	raw := map[string]any{"id": float64(7)}

	if _, _, err := a.SignInExternal(context.Background(), ExternalIdentity{
		Provider: "github", UID: "7", Email: "gh@example.com", ExtraData: raw,
	}); err != nil {
		t.Fatalf("SignInExternal: %v", err)
	}
	if _, ok := raw["email"]; ok || len(raw) != 1 {
		t.Fatalf("caller map was modified: %v", raw)
	}
}
