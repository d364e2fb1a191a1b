package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршруты отчетов требуют идентичности от шлюза аутентификации
	reports := api.Group("/reports")
	reports.Use(IdentityMiddleware(h.logger))
	{
		reports.POST("", h.submitReport)
		reports.GET("/my", h.listMyReports)
		reports.GET("/region", h.listRegionReports)
		reports.GET("/:id", h.getReport)
		reports.POST("/:id/resolve", h.resolveReport)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
