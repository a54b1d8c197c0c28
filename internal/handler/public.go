package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/visualscripts/license-api/internal/engine"
)

// PublicHandler serves the unauthenticated client endpoints hit by the
// running script and its loader. Every response is a verdict, never an
// internal error detail: a client that cannot be verified learns only
// the decision reason. Infrastructure failures map to 503 so clients
// can distinguish "denied" from "try again" and never fail open.
type PublicHandler struct {
	Engine *engine.Engine
}

func NewPublicHandler(e *engine.Engine) *PublicHandler {
	return &PublicHandler{Engine: e}
}

type verifyReq struct {
	ExternalID  string `json:"external_id"`
	Credential  string `json:"key"`
	Fingerprint string `json:"hwid"`
}

type checkBlacklistReq struct {
	Fingerprint string `json:"hwid"`
}

type registerReq struct {
	ExternalID  string `json:"external_id"`
	Fingerprint string `json:"hwid"`
}

type tamperReq struct {
	ExternalID  string `json:"external_id"`
	Fingerprint string `json:"hwid"`
	Detail      string `json:"detail"`
}

// VerifyKey runs the full access decision. 200 carries a grant, 403 a
// denial with its reason, 503 means the decision could not be made.
func (h *PublicHandler) VerifyKey(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Credential) == "" || strings.TrimSpace(req.Fingerprint) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "key and hwid required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Engine.VerifyAccess(ctx, engine.VerifyInput{
		ExternalID:  strings.TrimSpace(req.ExternalID),
		Credential:  req.Credential,
		Fingerprint: req.Fingerprint,
	})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "verification unavailable"})
	}
	if !d.Allowed {
		return c.JSON(http.StatusForbidden, d)
	}
	return c.JSON(http.StatusOK, d)
}

// CheckBlacklist is the in-session poll for bans issued after startup.
func (h *PublicHandler) CheckBlacklist(c echo.Context) error {
	var req checkBlacklistReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Fingerprint) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hwid required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status, err := h.Engine.CheckBlacklist(ctx, req.Fingerprint)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "check unavailable"})
	}
	return c.JSON(http.StatusOK, status)
}

// RegisterHWID binds the caller's device outside a full verification,
// as the loader does on first launch.
func (h *PublicHandler) RegisterHWID(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.ExternalID) == "" || strings.TrimSpace(req.Fingerprint) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_id and hwid required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Engine.RegisterDevice(ctx, strings.TrimSpace(req.ExternalID), req.Fingerprint)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "no subscription"})
		}
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "registration unavailable"})
	}
	if !d.Allowed {
		return c.JSON(http.StatusForbidden, d)
	}
	return c.JSON(http.StatusOK, d)
}

// TamperAlert ingests a client-side tamper report. The response is
// always 202 on accepted input: the report changes no state the caller
// could probe.
func (h *PublicHandler) TamperAlert(c echo.Context) error {
	var req tamperReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Detail) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "detail required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.ReportTamper(ctx,
		strings.TrimSpace(req.ExternalID), req.Fingerprint, req.Detail, c.RealIP()); err != nil {
		// Broker hiccups are invisible to the reporter; the journal entry
		// already landed.
		c.Logger().Warnf("tamper publish failed: %v", err)
	}
	return c.NoContent(http.StatusAccepted)
}
