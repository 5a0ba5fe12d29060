package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/iliyamo/todoer/internal/config"
	"github.com/iliyamo/todoer/internal/model"
	"github.com/iliyamo/todoer/internal/repository"
)

// PlaceholderPrefix marks credentials copied from an example env file and
// never filled in.
const PlaceholderPrefix = "your_"

// ProviderStore persists provider registrations and their site links.
type ProviderStore interface {
	GetByProvider(ctx context.Context, provider string) (*model.ProviderRegistration, error)
	Create(ctx context.Context, p *model.ProviderRegistration) error
	Update(ctx context.Context, p *model.ProviderRegistration) error
	AddSite(ctx context.Context, registrationID, siteID uint64) error
}

// SiteStore fetches or creates the deployment's site record.
type SiteStore interface {
	GetOrCreate(ctx context.Context, id uint64, domain, name string) (model.Site, bool, error)
}

// ProvisioningReport lists what ConfigureProviders did, by provider id.
type ProvisioningReport struct {
	Created []string
	Updated []string
	Skipped []string
}

// Provisioner reconciles declarative provider configuration into stored
// registrations.  Progress notices go to Notify, which defaults to
// log.Printf.
type Provisioner struct {
	providers ProviderStore
	sites     SiteStore
	Notify    func(format string, args ...any)
}

// NewProvisioner returns a Provisioner writing notices to the standard log.
func NewProvisioner(providers ProviderStore, sites SiteStore) *Provisioner {
	return &Provisioner{providers: providers, sites: sites, Notify: log.Printf}
}

// Run fetches or creates the site with id siteID (using domain and name
// only when it has to be created) and configures providers for it.
func (p *Provisioner) Run(ctx context.Context, siteID uint64, domain, name string, providers []config.ProviderConfig) (ProvisioningReport, error) {
	site, created, err := p.sites.GetOrCreate(ctx, siteID, domain, name)
	if err != nil {
		return ProvisioningReport{}, fmt.Errorf("get or create site %d: %w", siteID, err)
	}
	if created {
		p.notify("Created site %d (%s)", site.ID, site.Domain)
	}
	return p.ConfigureProviders(ctx, providers, site)
}

// ConfigureProviders creates or updates one registration per provider with
// usable credentials and links it to site.  Providers with missing or
// placeholder credentials are skipped with a notice.  Running it again
// with the same input changes nothing.
func (p *Provisioner) ConfigureProviders(ctx context.Context, providers []config.ProviderConfig, site model.Site) (ProvisioningReport, error) {
	var report ProvisioningReport
	for _, pc := range providers {
		if reason := SkipReason(pc); reason != "" {
			p.notify("Skipping %s - %s", pc.Name, reason)
			report.Skipped = append(report.Skipped, pc.ID)
			continue
		}

		reg, created, err := p.upsert(ctx, pc, deref(pc.ClientID), deref(pc.ClientSecret))
		if err != nil {
			return report, err
		}
		if err := p.providers.AddSite(ctx, reg.ID, site.ID); err != nil {
			return report, fmt.Errorf("link %s to site %d: %w", pc.ID, site.ID, err)
		}
		if created {
			p.notify("Created %s provider registration", pc.Name)
			report.Created = append(report.Created, pc.ID)
		} else {
			p.notify("Updated %s provider registration", pc.Name)
			report.Updated = append(report.Updated, pc.ID)
		}
	}
	p.notify("Provider configuration completed")
	return report, nil
}

// SkipReason reports why pc would not be provisioned, or "" when it would.
func SkipReason(pc config.ProviderConfig) string {
	clientID, secret := deref(pc.ClientID), deref(pc.ClientSecret)
	switch {
	case clientID == "" || secret == "":
		return "credentials not provided"
	case strings.HasPrefix(clientID, PlaceholderPrefix) || strings.HasPrefix(secret, PlaceholderPrefix):
		return "placeholder credentials detected"
	}
	return ""
}

func (p *Provisioner) upsert(ctx context.Context, pc config.ProviderConfig, clientID, secret string) (*model.ProviderRegistration, bool, error) {
	reg, err := p.providers.GetByProvider(ctx, pc.ID)
	switch {
	case errors.Is(err, repository.ErrProviderNotFound):
		reg = &model.ProviderRegistration{Provider: pc.ID, Name: pc.Name, ClientID: clientID, Secret: secret}
		if err := p.providers.Create(ctx, reg); err != nil {
			return nil, false, fmt.Errorf("create %s registration: %w", pc.ID, err)
		}
		return reg, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("load %s registration: %w", pc.ID, err)
	}

	reg.Name, reg.ClientID, reg.Secret = pc.Name, clientID, secret
	if err := p.providers.Update(ctx, reg); err != nil {
		return nil, false, fmt.Errorf("update %s registration: %w", pc.ID, err)
	}
	return reg, false, nil
}

func (p *Provisioner) notify(format string, args ...any) {
	if p.Notify != nil {
		p.Notify(format, args...)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
