package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/service"
	"github.com/snchs-registrar/enrollment-api/pkg/response"
)

// ExportHandler serves filtered enrollment lists as files.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// CSV godoc
// @Summary Export enrollments as CSV (admin)
// @Tags Export
// @Produce text/csv
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Router /admin/enrollments/export/csv [get]
func (h *ExportHandler) CSV(c *gin.Context) {
	data, err := h.exports.CSV(c.Request.Context(), exportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	name := fmt.Sprintf("enrollments-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "text/csv", data)
}

// PDF godoc
// @Summary Export enrollments as PDF (admin)
// @Tags Export
// @Produce application/pdf
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Router /admin/enrollments/export/pdf [get]
func (h *ExportHandler) PDF(c *gin.Context) {
	data, err := h.exports.PDF(c.Request.Context(), exportFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	name := fmt.Sprintf("enrollments-%s.pdf", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", data)
}

func exportFilter(c *gin.Context) models.EnrollmentFilter {
	return models.EnrollmentFilter{
		Status:     models.EnrollmentStatus(c.Query("status")),
		Type:       models.EnrollmentType(c.Query("type")),
		SchoolYear: c.Query("schoolYear"),
	}
}
