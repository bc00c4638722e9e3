package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.Use(RateLimitMiddleware(h.cfg.RateLimitPerMinute, h.logger))

	// Маршруты SOS и журнала инцидентов
	emergency := api.Group("/emergency", AuthMiddleware(h.verifier, h.logger))
	{
		emergency.POST("/sos", h.submitSOS)
		emergency.GET("/history", h.history)
		emergency.GET("/:id", h.getIncident)
		emergency.POST("/:id/acknowledge", h.acknowledge)
		emergency.POST("/:id/resolve", h.resolve)
		emergency.POST("/:id/cancel", h.cancel)
	}

	// Административные маршруты
	admin := api.Group("/admin", APIKeyAuthMiddleware(h.cfg, h.logger))
	{
		admin.GET("/stats", h.getStats)
		admin.POST("/responders/reload", h.reloadResponders)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
