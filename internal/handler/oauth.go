package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todoer/internal/oauth"
	"github.com/iliyamo/todoer/internal/service"
)

// OAuthHandler serves sign-in through external identity providers.
type OAuthHandler struct {
	Auth *AuthHandler
	Flow *oauth.Flow
}

func NewOAuthHandler(auth *AuthHandler, flow *oauth.Flow) *OAuthHandler {
	return &OAuthHandler{Auth: auth, Flow: flow}
}

type providerPart struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LoginURL string `json:"login_url"`
}

// Providers lists the providers a user can sign in with.
func (h *OAuthHandler) Providers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	regs, err := h.Flow.Enabled(ctx)
	if err != nil {
		c.Logger().Errorf("oauth: list providers: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list providers failed"})
	}
	out := make([]providerPart, 0, len(regs))
	for _, r := range regs {
		out = append(out, providerPart{
			ID:       r.Provider,
			Name:     r.Name,
			LoginURL: "/v1/auth/oauth/" + r.Provider + "/login",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"providers": out})
}

// Login redirects the browser to the provider's consent page.
func (h *OAuthHandler) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	url, err := h.Flow.Begin(ctx, c.Param("provider"))
	if errors.Is(err, oauth.ErrUnknownProvider) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown provider"})
	}
	if err != nil {
		c.Logger().Errorf("oauth: begin: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "oauth login failed"})
	}
	return c.Redirect(http.StatusFound, url)
}

// Callback completes the flow, signs the user in (creating the account on
// first use) and returns a token pair.
func (h *OAuthHandler) Callback(c echo.Context) error {
	provider := c.Param("provider")
	if e := c.QueryParam("error"); e != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider denied access: " + e})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	profile, err := h.Flow.Complete(ctx, provider, c.QueryParam("state"), c.QueryParam("code"))
	switch {
	case errors.Is(err, oauth.ErrInvalidState):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired state"})
	case errors.Is(err, oauth.ErrUnknownProvider):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown provider"})
	case err != nil:
		c.Logger().Errorf("oauth: complete %s: %v", provider, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "provider exchange failed"})
	}

	u, created, err := h.Auth.Accounts.SignInExternal(ctx, service.ExternalIdentity{
		Provider:      profile.Provider,
		UID:           profile.UID,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		ExtraData:     profile.Raw,
	})
	if err != nil {
		c.Logger().Errorf("oauth: sign in %s: %v", provider, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sign in failed"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account disabled"})
	}

	resp, err := h.Auth.issueTokens(ctx, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, resp)
}
