package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/middleware"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimitMiddleware *middleware.RateLimitMiddleware) {
	SetupHealthRouter(e)
	SetupFileRouter(e, authMiddleware, rateLimitMiddleware)
}
