package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"github.com/iliyamo/todoer/internal/kv"
	"github.com/iliyamo/todoer/internal/model"
)

type staticSource []model.ProviderRegistration

func (s staticSource) ListForSite(context.Context, uint64) ([]model.ProviderRegistration, error) {
	return append([]model.ProviderRegistration(nil), s...), nil
}

// fakeProvider serves a token endpoint and a Google-style userinfo
// endpoint.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"1234","email":"jane@example.com","email_verified":true,"name":"Jane"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFlow(t *testing.T) *Flow {
	t.Helper()
	srv := fakeProvider(t)
	f := NewFlow(staticSource{{Provider: "google", Name: "Google", ClientID: "cid", Secret: "csecret"}},
		kv.NewMemoryStore(), 1, "http://localhost:8000/")
	f.specs["google"] = Spec{
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes:      []string{"openid", "email"},
		UserInfoURL: srv.URL + "/userinfo",
		Parse:       parseGoogle,
	}
	return f
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	if got := u.Query().Get("redirect_uri"); got != "http://localhost:8000/v1/auth/oauth/google/callback" {
		t.Fatalf("unexpected redirect_uri %q", got)
	}
	return u.Query().Get("state")
}

func TestFlowRoundTrip(t *testing.T) {
	f := newTestFlow(t)
	ctx := context.Background()

	authURL, err := f.Begin(ctx, "google")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	state := stateFrom(t, authURL)

	p, err := f.Complete(ctx, "google", state, "good-code")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if p.UID != "1234" || p.Email != "jane@example.com" || !p.EmailVerified || p.Raw["name"] != "Jane" {
		t.Fatalf("unexpected profile %+v", p)
	}

	if _, err := f.Complete(ctx, "google", state, "good-code"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("reused state = %v, want ErrInvalidState", err)
	}
}

func TestFlowRejectsBadState(t *testing.T) {
	f := newTestFlow(t)
	ctx := context.Background()

	if _, err := f.Complete(ctx, "google", "never-issued", "good-code"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("unknown state = %v, want ErrInvalidState", err)
	}

	authURL, _ := f.Begin(ctx, "google")
	if _, err := f.Complete(ctx, "github", stateFrom(t, authURL), "good-code"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("state for another provider = %v, want ErrInvalidState", err)
	}
}

func TestFlowUnknownProvider(t *testing.T) {
	f := newTestFlow(t)
	if _, err := f.Begin(context.Background(), "myspace"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("Begin(unknown) = %v, want ErrUnknownProvider", err)
	}
	// github has a spec but no registration
	if _, err := f.Begin(context.Background(), "github"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("Begin(unregistered) = %v, want ErrUnknownProvider", err)
	}
}

func TestParseGitHubNumericID(t *testing.T) {
	p, err := parseGitHub(map[string]any{"id": float64(583231), "login": "octocat", "email": nil})
	if err != nil {
		t.Fatalf("parseGitHub: %v", err)
	}
	if p.UID != "583231" || p.Email != "" || p.EmailVerified {
		t.Fatalf("unexpected profile %+v", p)
	}
	if _, err := parseGoogle(map[string]any{"email": "x@example.com"}); err == nil {
		t.Fatal("expected error for google profile without sub")
	}
}
