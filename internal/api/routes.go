package api

import (
	"github.com/gin-gonic/gin"

	"github.com/itsmkit/glpi-dashboard/internal/telemetry"
)

// RegisterRoutes mounts the dashboard API under /api/v1/maintenance plus
// the Prometheus scrape endpoint.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	v1 := router.Group("/api/v1/maintenance")
	{
		v1.GET("/stats", h.Stats)
		v1.GET("/status-totals", h.StatusTotals)
		v1.GET("/tickets/new", h.NewTickets)

		rankings := v1.Group("/rankings")
		{
			rankings.GET("/entities", h.EntityRanking)
			rankings.GET("/entities/all-time", h.EntityRankingAllTime)
			rankings.GET("/categories", h.CategoryRanking)
			rankings.GET("/categories/all-time", h.CategoryRankingAllTime)
			rankings.GET("/technicians", h.TechnicianRanking)
		}
	}
}
