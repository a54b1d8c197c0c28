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
	"github.com/visualscripts/license-api/internal/repository"
)

// PanelHandler serves the subscriber-facing operations driven by the
// bot or panel service. The service authenticates with a PANEL token
// and acts on behalf of the subscriber named by external_id; end users
// never talk to these endpoints directly.
type PanelHandler struct {
	Engine *engine.Engine
}

func NewPanelHandler(e *engine.Engine) *PanelHandler {
	return &PanelHandler{Engine: e}
}

type redeemReq struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	KeyCode    string `json:"key"`
}

type resetReq struct {
	ExternalID string `json:"external_id"`
}

// subscriberView is the panel-facing projection of a subscriber. The
// personal credential is never echoed back; the panel only learns
// whether one is set.
type subscriberView struct {
	ExternalID  string     `json:"external_id"`
	Username    string     `json:"username"`
	IsActive    bool       `json:"is_active"`
	HasKey      bool       `json:"has_key"`
	DeviceBound bool       `json:"device_bound"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	LastReset   *time.Time `json:"last_reset,omitempty"`
}

// Redeem consumes a license key for a subscriber. 409 when the key was
// already used, 404 when it never existed.
func (h *PanelHandler) Redeem(c echo.Context) error {
	var req redeemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if req.ExternalID == "" || strings.TrimSpace(req.KeyCode) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_id and key required"})
	}
	if req.Username == "" {
		req.Username = req.ExternalID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Engine.RedeemKey(ctx, req.ExternalID, req.Username, req.KeyCode)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown key"})
	case errors.Is(err, repository.ErrKeyRedeemed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "key already redeemed"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "redeem failed"})
	}
}

// ResetHWID clears a subscriber's bound device, subject to the cooldown.
// 429 carries when the next reset is allowed.
func (h *PanelHandler) ResetHWID(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.ExternalID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Engine.ResetDevice(ctx, strings.TrimSpace(req.ExternalID))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"reset": true})
	case errors.Is(err, engine.ErrCooldownActive):
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":           "reset cooldown active",
			"next_allowed_at": out.NextAllowedAt,
			"days_remaining":  out.DaysRemaining,
		})
	case errors.Is(err, repository.ErrNoDeviceBound):
		return c.JSON(http.StatusConflict, echo.Map{"error": "no device bound"})
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown subscriber"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reset failed"})
	}
}

// Profile returns a subscriber's record for the panel's account view.
func (h *PanelHandler) Profile(c echo.Context) error {
	externalID := strings.TrimSpace(c.QueryParam("external_id"))
	if externalID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sub, err := h.Engine.Profile(ctx, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown subscriber"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, subscriberView{
		ExternalID:  sub.ExternalID,
		Username:    sub.Username,
		IsActive:    sub.IsActive,
		HasKey:      sub.LicenseKey != nil,
		DeviceBound: sub.HWID != nil,
		ExpiryDate:  sub.ExpiryDate,
		LastReset:   sub.LastReset,
	})
}
