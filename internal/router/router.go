// Package router defines how HTTP routes are registered for the API.
// Three surfaces exist: the unauthenticated client endpoints the
// running script calls, the PANEL surface the bot or panel service
// drives on behalf of subscribers, and the ADMIN management surface.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/visualscripts/license-api/internal/handler"
	"github.com/visualscripts/license-api/internal/middleware"
)

// RegisterPublic registers the unauthenticated endpoints. These carry
// no session; the credential in the body is the whole authentication.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler) {
	e.GET("/healthz", handler.Health)
	e.POST("/verify-key", p.VerifyKey)
	e.POST("/check-blacklist", p.CheckBlacklist)
	e.POST("/register-hwid", p.RegisterHWID)
	e.POST("/tamper-alert", p.TamperAlert)
}

// RegisterAuth registers operator login and token exchange under
// /v1/auth, plus the token-protected /v1/me probe.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN", "PANEL"))
	auth.GET("/me", a.Me)
}

// RegisterPanel registers the subscriber-facing operations. Both roles
// may drive them: PANEL is the bot service, ADMIN can always do what
// the bot can.
func RegisterPanel(e *echo.Echo, p *handler.PanelHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN", "PANEL"))

	g.POST("/redeem", p.Redeem)
	g.POST("/reset-hwid", p.ResetHWID)
	g.GET("/subscriber", p.Profile)
}

// RegisterAdmin registers the management surface, ADMIN role only.
// Extra middleware (the response cache for dashboard reads) is applied
// after auth so a cache hit can never bypass the token check.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))
	g.Use(extra...)

	g.POST("/keys", a.IssueKeys)
	g.GET("/keys/:code", a.InspectKey)
	g.DELETE("/keys/:code", a.RevokeKey)
	g.POST("/scripts", a.AddScript)
	g.POST("/whitelist", a.Whitelist)
	g.POST("/blacklist", a.Ban)
	g.DELETE("/blacklist/:hwid", a.Unban)
	g.GET("/stats", a.Stats)
	g.GET("/hwid-list", a.ListDevices)
	g.GET("/activity", a.RecentActivity)
}
