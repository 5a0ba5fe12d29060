package model

import "time"

// Site is the deployment record that provider registrations are attached
// to (`sites` table).  A deployment normally has exactly one.
type Site struct {
	ID     uint64 // sites.id
	Domain string // sites.domain
	Name   string // sites.name
}

// ProviderRegistration holds the OAuth client credentials of one external
// identity provider (`provider_registrations` table).  Registrations are
// keyed by Provider and linked to sites through `provider_sites`.
//
// Fields:
//  ID        – primary key identifier.
//  Provider  – stable provider key such as "google".
//  Name      – display name shown on the login page.
//  ClientID  – OAuth client id.
//  Secret    – OAuth client secret.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type ProviderRegistration struct {
	ID        uint64
	Provider  string
	Name      string
	ClientID  string
	Secret    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SocialAccount links a local user to an identity at an external provider
// (`social_accounts` table).  ExtraData keeps the raw profile returned by
// the provider.
type SocialAccount struct {
	ID        uint64
	UserID    uint64
	Provider  string
	UID       string
	ExtraData map[string]any
	CreatedAt time.Time
}
