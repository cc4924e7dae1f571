package api

import (
	"net/http"

	authDelivery "design-assistant-backend/internal/auth/delivery"
	authUsecase "design-assistant-backend/internal/auth/usecase"
	chatDelivery "design-assistant-backend/internal/chat/delivery"
	taskDelivery "design-assistant-backend/internal/task/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	auth *authUsecase.AuthUsecase,
	authHandler *authDelivery.AuthHandler,
	taskHandler *taskDelivery.TaskHandler,
	chatHandler *chatDelivery.ChatHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// monday OAuth (browser flow, no bearer auth)
		oauth := api.Group("/auth/monday")
		{
			oauth.GET("/login", authHandler.Login)
			oauth.GET("/callback", authHandler.Callback)
		}

		// Handoff exchange (authenticated by monday session token / one-time code)
		handoff := api.Group("/monday/handoff")
		{
			handoff.POST("/init", authHandler.HandoffInit)
			handoff.POST("/resolve", authHandler.HandoffResolve)
		}

		// Task surface (protected, token scoped to one task)
		tasks := api.Group("/tasks")
		tasks.Use(authDelivery.AuthMiddleware(auth), authDelivery.RequireTaskScope())
		{
			tasks.POST("/:key/sync", taskHandler.SyncTask)
			tasks.GET("/:key/summary", taskHandler.GetSummary)
			tasks.GET("/:key/sources", taskHandler.GetSources)
			tasks.GET("/:key/files/:fileId/signed-url", taskHandler.GetSignedURL)
			tasks.POST("/:key/chat", chatHandler.Chat)
		}
	}
}
