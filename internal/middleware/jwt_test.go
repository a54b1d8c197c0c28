package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visualscripts/license-api/internal/utils"
)

const testSecret = "unit-test-secret"

func doRequest(t *testing.T, mw []echo.MiddlewareFunc, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	rec := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	at, err := utils.NewAccessToken("other-secret", 1, "ADMIN", 5)
	require.NoError(t, err)
	rec := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer "+at.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	at, err := utils.NewAccessToken(testSecret, 1, "ADMIN", 5)
	require.NoError(t, err)
	rec := doRequest(t, []echo.MiddlewareFunc{JWTAuth(testSecret)}, "Bearer "+at.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleEnforcesAllowedSet(t *testing.T) {
	panelToken, err := utils.NewAccessToken(testSecret, 2, "PANEL", 5)
	require.NoError(t, err)

	adminOnly := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("ADMIN")}
	rec := doRequest(t, adminOnly, "Bearer "+panelToken.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	either := []echo.MiddlewareFunc{JWTAuth(testSecret), RequireRole("ADMIN", "PANEL")}
	rec = doRequest(t, either, "Bearer "+panelToken.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
}
