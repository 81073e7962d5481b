// Package api exposes the dashboard aggregations over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itsmkit/glpi-dashboard/internal/glpi"
	"github.com/itsmkit/glpi-dashboard/internal/logger"
	"github.com/itsmkit/glpi-dashboard/internal/service"
)

const defaultTop = 10

// Handlers serves the dashboard endpoints.
type Handlers struct {
	svc *service.Service
	log logger.Logger
}

// NewHandlers builds the handler set.
func NewHandlers(svc *service.Service, log logger.Logger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

// Stats handles GET /stats.
func (h *Handlers) Stats(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// StatusTotals handles GET /status-totals.
func (h *Handlers) StatusTotals(c *gin.Context) {
	totals, err := h.svc.StatusTotals(c.Request.Context())
	if err != nil {
		h.fail(c, "status-totals", err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// EntityRanking handles GET /rankings/entities.
func (h *Handlers) EntityRanking(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	ranks, err := h.svc.RankEntities(c.Request.Context(), from, to, h.top(c))
	if err != nil {
		h.fail(c, "entity ranking", err)
		return
	}
	c.JSON(http.StatusOK, ranks)
}

// EntityRankingAllTime handles GET /rankings/entities/all-time.
func (h *Handlers) EntityRankingAllTime(c *gin.Context) {
	ranks, err := h.svc.RankEntitiesAllTime(c.Request.Context(), h.top(c))
	if err != nil {
		h.fail(c, "entity ranking all-time", err)
		return
	}
	c.JSON(http.StatusOK, ranks)
}

// CategoryRanking handles GET /rankings/categories.
func (h *Handlers) CategoryRanking(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	ranks, err := h.svc.RankCategories(c.Request.Context(), from, to, h.top(c))
	if err != nil {
		h.fail(c, "category ranking", err)
		return
	}
	c.JSON(http.StatusOK, ranks)
}

// CategoryRankingAllTime handles GET /rankings/categories/all-time.
func (h *Handlers) CategoryRankingAllTime(c *gin.Context) {
	ranks, err := h.svc.RankCategoriesAllTime(c.Request.Context(), h.top(c))
	if err != nil {
		h.fail(c, "category ranking all-time", err)
		return
	}
	c.JSON(http.StatusOK, ranks)
}

// TechnicianRanking handles GET /rankings/technicians.
func (h *Handlers) TechnicianRanking(c *gin.Context) {
	from, to, ok := h.dateRange(c)
	if !ok {
		return
	}
	includeUnassigned := c.Query("include_unassigned") == "true"
	ranks, err := h.svc.RankTechnicians(c.Request.Context(), from, to, h.top(c), includeUnassigned)
	if err != nil {
		h.fail(c, "technician ranking", err)
		return
	}
	c.JSON(http.StatusOK, ranks)
}

// NewTickets handles GET /tickets/new.
func (h *Handlers) NewTickets(c *gin.Context) {
	limit := defaultTop
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	tickets, err := h.svc.NewTickets(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "new tickets", err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// dateRange validates the required from/to query parameters.
func (h *Handlers) dateRange(c *gin.Context) (string, string, bool) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		badRequest(c, "from and to date parameters are required")
		return "", "", false
	}
	for _, date := range []string{from, to} {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			badRequest(c, "dates must use YYYY-MM-DD")
			return "", "", false
		}
	}
	return from, to, true
}

func (h *Handlers) top(c *gin.Context) int {
	raw := c.Query("top")
	if raw == "" {
		return defaultTop
	}
	top, err := strconv.Atoi(raw)
	if err != nil {
		return defaultTop
	}
	return top
}

// fail maps a service error to the transport response. Classified upstream
// failures become 502 with a sanitized body; everything else is a generic
// 500. Full context goes to the server log only.
func (h *Handlers) fail(c *gin.Context, operation string, err error) {
	if glpi.IsUpstreamError(err) {
		h.log.Error("upstream failure",
			logger.String("operation", operation), logger.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "upstream communication failure",
			"code":  "UPSTREAM_ERROR",
		})
		return
	}
	h.log.Error("unexpected failure",
		logger.String("operation", operation), logger.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal error",
		"code":  "INTERNAL_ERROR",
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
		"code":  "INVALID_REQUEST",
	})
}
