package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/civic_issues/pkg/utils"
)

// HealthHandler reports whether the service and its database are reachable.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} utils.HealthResponse
// @Failure 503 {object} utils.ErrorResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		utils.RespondError(c, http.StatusServiceUnavailable, "database unavailable: "+err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, utils.HealthResponse{Status: "ok"})
}
