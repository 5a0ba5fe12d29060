package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProviderConfig is the declarative description of one OAuth provider as
// read from configuration.  Credentials are nil when not configured.
type ProviderConfig struct {
	ID           string
	Name         string
	ClientID     *string
	ClientSecret *string
}

// ProviderEntry names a provider and the parameters holding its
// credentials.  Parameter names are resolved through a ParamReader.
type ProviderEntry struct {
	ID                string `toml:"id"`
	Name              string `toml:"name"`
	ClientIDParam     string `toml:"client_id"`
	ClientSecretParam string `toml:"client_secret"`
}

// ProviderCatalog is the list of providers a deployment knows about.
type ProviderCatalog struct {
	Providers []ProviderEntry `toml:"provider"`
}

// DefaultProviderCatalog returns the built-in catalog: Google only.
func DefaultProviderCatalog() ProviderCatalog {
	return ProviderCatalog{Providers: []ProviderEntry{{
		ID:                "google",
		Name:              "Google",
		ClientIDParam:     "GOOGLE_OAUTH_CLIENT_ID",
		ClientSecretParam: "GOOGLE_OAUTH_CLIENT_SECRET",
	}}}
}

// LoadProviderCatalog decodes a TOML catalog:
//
//	[[provider]]
//	id = "github"
//	name = "GitHub"
//	client_id = "GITHUB_OAUTH_CLIENT_ID"
//	client_secret = "GITHUB_OAUTH_CLIENT_SECRET"
//
// An empty path or a missing file yields the default catalog.
func LoadProviderCatalog(path string) (ProviderCatalog, error) {
	if path == "" {
		return DefaultProviderCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultProviderCatalog(), nil
	}
	if err != nil {
		return ProviderCatalog{}, fmt.Errorf("read provider catalog %s: %w", path, err)
	}
	var cat ProviderCatalog
	if _, err := toml.Decode(string(data), &cat); err != nil {
		return ProviderCatalog{}, fmt.Errorf("parse provider catalog %s: %w", path, err)
	}
	seen := make(map[string]bool, len(cat.Providers))
	for i, p := range cat.Providers {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return ProviderCatalog{}, fmt.Errorf("provider catalog %s: entry %d has no id", path, i+1)
		}
		if seen[id] {
			return ProviderCatalog{}, fmt.Errorf("provider catalog %s: duplicate provider %q", path, id)
		}
		seen[id] = true
		cat.Providers[i].ID = id
		if strings.TrimSpace(p.Name) == "" {
			cat.Providers[i].Name = id
		}
	}
	return cat, nil
}

// Resolve turns the catalog into provider configs, looking up each
// credential parameter through r.
func (c ProviderCatalog) Resolve(r ParamReader) []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		out = append(out, ProviderConfig{
			ID:           p.ID,
			Name:         p.Name,
			ClientID:     r.Lookup(p.ClientIDParam),
			ClientSecret: r.Lookup(p.ClientSecretParam),
		})
	}
	return out
}
