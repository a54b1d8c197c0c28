package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/visualscripts/license-api/internal/engine"
	"github.com/visualscripts/license-api/internal/repository"
)

// AdminHandler serves the management surface: key issuance, script
// registration, whitelist, blacklist and dashboard reads. All routes
// require the ADMIN role.
type AdminHandler struct {
	Engine *engine.Engine
}

func NewAdminHandler(e *engine.Engine) *AdminHandler {
	return &AdminHandler{Engine: e}
}

// actor returns the operator identity for journal attribution, falling
// back to the role when the JWT carried no usable subject.
func actor(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return "admin:" + v
	}
	if v, ok := c.Get("user_id").(float64); ok {
		return "admin:" + strconv.FormatUint(uint64(v), 10)
	}
	return "admin"
}

type issueKeysReq struct {
	Count        int `json:"count"`
	DurationDays int `json:"duration_days"`
}

type addScriptReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ScriptURL   string `json:"script_url"`
}

type whitelistReq struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Days       int    `json:"days"`
}

type banReq struct {
	Fingerprint string  `json:"hwid"`
	Reason      string  `json:"reason"`
	ExternalID  *string `json:"external_id"`
}

// IssueKeys mints a batch of unredeemed keys.
func (h *AdminHandler) IssueKeys(c echo.Context) error {
	var req issueKeysReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Count < 1 {
		req.Count = 1
	}
	if req.DurationDays < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_days must be positive"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	codes, err := h.Engine.IssueKeys(ctx, req.Count, req.DurationDays, actor(c))
	if err != nil {
		if errors.Is(err, engine.ErrBatchTooLarge) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "count exceeds batch limit"})
		}
		// Partial batches are still reported; the listed keys exist.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue failed", "keys": codes})
	}
	return c.JSON(http.StatusCreated, echo.Map{"keys": codes, "duration_days": req.DurationDays})
}

// InspectKey shows one issued key: its duration and, once consumed,
// who redeemed it and when.
func (h *AdminHandler) InspectKey(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "key code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	k, err := h.Engine.KeyInfo(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown key"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	out := echo.Map{
		"key_code":      k.KeyCode,
		"duration_days": k.DurationDays,
		"is_redeemed":   k.IsRedeemed,
		"created_at":    k.CreatedAt,
	}
	if k.RedeemedBy != nil {
		out["redeemed_by"] = *k.RedeemedBy
	}
	if k.RedeemedAt != nil {
		out["redeemed_at"] = *k.RedeemedAt
	}
	return c.JSON(http.StatusOK, out)
}

// RevokeKey deletes an issued key by code.
func (h *AdminHandler) RevokeKey(c echo.Context) error {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "key code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.RevokeKey(ctx, code, actor(c)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown key"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "revoke failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// AddScript registers a script and returns its generated shared key.
// The key is shown once; it is not retrievable later.
func (h *AdminHandler) AddScript(c echo.Context) error {
	var req addScriptReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.ScriptURL) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and script_url required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	key, err := h.Engine.AddScript(ctx, req.Name, req.Description, req.ScriptURL, actor(c))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "script already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create script failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"name": req.Name, "script_key": key})
}

// Whitelist provisions or extends a subscription without a key.
func (h *AdminHandler) Whitelist(c echo.Context) error {
	var req whitelistReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	if req.ExternalID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "external_id required"})
	}
	if req.Username == "" {
		req.Username = req.ExternalID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	expiry, err := h.Engine.Whitelist(ctx, req.ExternalID, req.Username, req.Days, actor(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "whitelist failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"external_id": req.ExternalID, "expiry_date": expiry})
}

// Ban blacklists a device and cascades deactivation to bound subscribers.
func (h *AdminHandler) Ban(c echo.Context) error {
	var req banReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Fingerprint) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hwid required"})
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "unspecified"
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Engine.Ban(ctx, req.Fingerprint, req.Reason, actor(c), req.ExternalID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "already blacklisted"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "ban failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"banned": true, "subscribers_deactivated": n})
}

// Unban lifts a blacklist entry. Deactivated subscribers stay inactive
// until explicitly whitelisted again.
func (h *AdminHandler) Unban(c echo.Context) error {
	fp := strings.TrimSpace(c.Param("hwid"))
	if fp == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hwid required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.Unban(ctx, fp, actor(c)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not blacklisted"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "unban failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats returns the dashboard counters.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Engine.CollectStats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stats failed"})
	}
	return c.JSON(http.StatusOK, s)
}

// ListDevices returns every subscriber with a bound device.
func (h *AdminHandler) ListDevices(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	listings, err := h.Engine.ListDevices(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"devices": listings})
}

// RecentActivity returns the newest journal entries.
func (h *AdminHandler) RecentActivity(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	records, err := h.Engine.RecentActivity(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]echo.Map, 0, len(records))
	for _, r := range records {
		m := echo.Map{
			"action":    r.Action,
			"details":   r.Details,
			"timestamp": r.Timestamp,
		}
		if r.ExternalID != nil {
			m["external_id"] = *r.ExternalID
		}
		if r.HWID != nil {
			m["hwid"] = *r.HWID
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"activity": out})
}
