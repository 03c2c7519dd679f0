package router

import (
	"github.com/gin-gonic/gin"

	"echoform.app/echoform/internal/http/handler"
)

func ResponseRouter(router *gin.RouterGroup, handler *handler.ResponseHandler) {
	router.POST("", handler.Start)
	router.GET("/:id", handler.Get)
	router.POST("/:id/turns", handler.ProcessTurn)
	router.POST("/:id/finalize", handler.Finalize)
}
