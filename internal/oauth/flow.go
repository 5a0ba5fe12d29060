package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/iliyamo/todoer/internal/kv"
	"github.com/iliyamo/todoer/internal/model"
)

var (
	// ErrUnknownProvider means the provider is not registered for the
	// site or no Spec exists for it.
	ErrUnknownProvider = errors.New("oauth: unknown provider")
	// ErrInvalidState covers missing, expired, reused and mismatched
	// state values.
	ErrInvalidState = errors.New("oauth: invalid state")
)

const statePrefix = "oauth:state:"

// RegistrationSource lists the provider registrations enabled for a site.
type RegistrationSource interface {
	ListForSite(ctx context.Context, siteID uint64) ([]model.ProviderRegistration, error)
}

// Flow drives the authorization code flow.  Registrations are read on
// every request so that a provisioning run takes effect without restart.
type Flow struct {
	source   RegistrationSource
	state    kv.Store
	siteID   uint64
	baseURL  string
	stateTTL time.Duration
	specs    map[string]Spec
}

// NewFlow returns a flow for siteID.  Callback URLs are built as
// <baseURL>/v1/auth/oauth/<provider>/callback.
func NewFlow(source RegistrationSource, state kv.Store, siteID uint64, baseURL string) *Flow {
	return &Flow{
		source:   source,
		state:    state,
		siteID:   siteID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		stateTTL: 10 * time.Minute,
		specs:    DefaultSpecs(),
	}
}

// Enabled returns the registrations of the site that this flow can serve.
func (f *Flow) Enabled(ctx context.Context) ([]model.ProviderRegistration, error) {
	regs, err := f.source.ListForSite(ctx, f.siteID)
	if err != nil {
		return nil, err
	}
	out := regs[:0]
	for _, r := range regs {
		if _, ok := f.specs[r.Provider]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Begin creates a single-use state for provider and returns the URL to
// send the browser to.
func (f *Flow) Begin(ctx context.Context, provider string) (string, error) {
	conf, _, err := f.config(ctx, provider)
	if err != nil {
		return "", err
	}
	state := uuid.NewString()
	if err := f.state.Set(ctx, statePrefix+state, []byte(provider), f.stateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return conf.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Complete validates and consumes state, exchanges code for a token and
// fetches the user's profile.
func (f *Flow) Complete(ctx context.Context, provider, state, code string) (Profile, error) {
	if state == "" || code == "" {
		return Profile{}, ErrInvalidState
	}
	stored, err := f.state.Take(ctx, statePrefix+state)
	if errors.Is(err, kv.ErrNotFound) {
		return Profile{}, ErrInvalidState
	}
	if err != nil {
		return Profile{}, fmt.Errorf("load oauth state: %w", err)
	}
	if string(stored) != provider {
		return Profile{}, ErrInvalidState
	}

	conf, spec, err := f.config(ctx, provider)
	if err != nil {
		return Profile{}, err
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}
	return fetchProfile(ctx, conf.Client(ctx, tok), spec)
}

func (f *Flow) config(ctx context.Context, provider string) (*oauth2.Config, Spec, error) {
	spec, ok := f.specs[provider]
	if !ok {
		return nil, Spec{}, ErrUnknownProvider
	}
	regs, err := f.source.ListForSite(ctx, f.siteID)
	if err != nil {
		return nil, Spec{}, fmt.Errorf("list providers: %w", err)
	}
	for _, r := range regs {
		if r.Provider != provider {
			continue
		}
		return &oauth2.Config{
			ClientID:     r.ClientID,
			ClientSecret: r.Secret,
			Endpoint:     spec.Endpoint,
			Scopes:       spec.Scopes,
			RedirectURL:  fmt.Sprintf("%s/v1/auth/oauth/%s/callback", f.baseURL, provider),
		}, spec, nil
	}
	return nil, Spec{}, ErrUnknownProvider
}

func fetchProfile(ctx context.Context, client *http.Client, spec Spec) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.UserInfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("user info returned status %d", resp.StatusCode)
	}
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Profile{}, fmt.Errorf("decode user info: %w", err)
	}
	return spec.Parse(raw)
}
