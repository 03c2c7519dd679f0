package router

import (
	"github.com/gin-gonic/gin"

	"echoform.app/echoform/internal/http/handler"
)

func AdminRouter(router *gin.RouterGroup, handler *handler.AdminHandler) {
	router.POST("/sweep", handler.Sweep)
	router.POST("/prompt-cache/invalidate", handler.InvalidatePromptCache)
	router.POST("/accounts/:id/onboarding", handler.StartOnboarding)
}
