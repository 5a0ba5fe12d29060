// Package oauth runs the authorization code flow against the external
// identity providers registered in the database and turns their user info
// responses into a common Profile.
package oauth

import (
	"fmt"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Profile is the identity an external provider reported for a user.
type Profile struct {
	Provider      string
	UID           string
	Email         string
	EmailVerified bool
	// Raw is the decoded user info document, stored as the social
	// account's extra data.
	Raw map[string]any
}

// Spec describes how to talk to one provider: where its endpoints are,
// which scopes to request and how to read its user info response.
type Spec struct {
	Endpoint    oauth2.Endpoint
	Scopes      []string
	UserInfoURL string
	Parse       func(raw map[string]any) (Profile, error)
}

// DefaultSpecs returns the providers this service knows how to talk to,
// keyed by provider id.
func DefaultSpecs() map[string]Spec {
	return map[string]Spec{
		"google": {
			Endpoint:    endpoints.Google,
			Scopes:      []string{"openid", "email", "profile"},
			UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			Parse:       parseGoogle,
		},
		"github": {
			Endpoint:    endpoints.GitHub,
			Scopes:      []string{"read:user", "user:email"},
			UserInfoURL: "https://api.github.com/user",
			Parse:       parseGitHub,
		},
	}
}

// parseGoogle reads an OpenID Connect userinfo document.
func parseGoogle(raw map[string]any) (Profile, error) {
	sub, _ := raw["sub"].(string)
	if sub == "" {
		return Profile{}, fmt.Errorf("google userinfo: missing sub")
	}
	email, _ := raw["email"].(string)
	verified, _ := raw["email_verified"].(bool)
	return Profile{Provider: "google", UID: sub, Email: email, EmailVerified: verified, Raw: raw}, nil
}

// parseGitHub reads a GitHub /user document.  The public email there is
// not guaranteed to be verified.
func parseGitHub(raw map[string]any) (Profile, error) {
	var uid string
	switch id := raw["id"].(type) {
	case float64:
		uid = strconv.FormatInt(int64(id), 10)
	case string:
		uid = id
	}
	if uid == "" {
		return Profile{}, fmt.Errorf("github user: missing id")
	}
	email, _ := raw["email"].(string)
	return Profile{Provider: "github", UID: uid, Email: email, Raw: raw}, nil
}
