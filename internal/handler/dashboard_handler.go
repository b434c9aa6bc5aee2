package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/service"
	"github.com/snchs-registrar/enrollment-api/pkg/response"
)

// DashboardHandler exposes admin dashboard aggregates.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats godoc
// @Summary Enrollment statistics (admin)
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Activity godoc
// @Summary Daily submission series (admin)
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param days query int false "Trailing window in days"
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard/activity [get]
func (h *DashboardHandler) Activity(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	activity, err := h.dashboard.RecentActivity(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activity, nil)
}
