package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports liveness. It deliberately touches no dependencies so
// an unhealthy database or broker never masks a running process.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
