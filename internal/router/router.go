package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todoer/internal/handler"
	"github.com/iliyamo/todoer/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers authentication routes.  Session operations live
// under /v1/auth behind the limiter; the account endpoints live under /v1
// and require a valid access token.  limiter and cache may be no-op
// middleware when Redis is unavailable.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, o *handler.OAuthHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh, limiter)
	g.POST("/refresh-access", a.RefreshAccess, limiter)
	g.POST("/logout", a.Logout, limiter)

	if o != nil {
		g.GET("/providers", o.Providers, cache)
		g.GET("/oauth/:provider/login", o.Login, limiter)
		g.GET("/oauth/:provider/callback", o.Callback, limiter)
	}

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.DELETE("/me", a.DeleteMe)
}

// RegisterTodos registers the to-do endpoints.  Every route requires a
// valid access token and acts on the caller's own items only.
func RegisterTodos(e *echo.Echo, t *handler.TodoHandler, jwtSecret string) {
	g := e.Group("/v1/todos")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.GET("", t.List)
	g.GET("/trash", t.Trash)
	g.POST("", t.Create)
	g.PATCH("/:id", t.Update)
	g.POST("/:id/toggle", t.Toggle)
	g.DELETE("/:id", t.Delete)
	g.POST("/:id/restore", t.Restore)
}
