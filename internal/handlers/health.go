package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeromeabel/lapreuveduconcept/internal/database"
)

type HealthHandler struct {
	db database.Service
}

func NewHealthHandler(db database.Service) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health reports database connectivity and pool stats.
func (h *HealthHandler) Health(c *gin.Context) {
	stats := h.db.Health(c.Request.Context())
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
