package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"echoform.app/echoform/internal/http/handler"
	"echoform.app/echoform/internal/http/middleware"
	"echoform.app/echoform/internal/service"
	"echoform.app/echoform/internal/store"
)

type RouterConfig struct {
	AdminAPIKey      string
	InactivityWindow time.Duration
	SweepBatchSize   int32
}

func SetupRoutes(router *gin.Engine, services *service.Services, stores *store.Stores, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		responseHandler := handler.NewResponseHandler(services.Turn, stores.Responses())
		ResponseRouter(v1.Group("/responses"), responseHandler)
	}

	adminHandler := handler.NewAdminHandler(
		services.Sweep,
		services.Onboarding,
		services.PromptCache,
		cfg.InactivityWindow,
		cfg.SweepBatchSize,
	)
	internal := router.Group("/internal", middleware.RequireAdminKey(cfg.AdminAPIKey))
	AdminRouter(internal, adminHandler)
}
