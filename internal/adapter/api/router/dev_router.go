package router

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/adapter/api/handler"
)

func SetupDevRouter(e *echo.Echo, environment string) {
	if environment != "development" {
		return
	}
	devTokenHandler := handler.GetDevTokenHandler()

	e.POST("/v1/dev/token", devTokenHandler.GenerateToken)
	e.POST("/v1/dev/custom-token", devTokenHandler.GenerateCustomToken)
}
