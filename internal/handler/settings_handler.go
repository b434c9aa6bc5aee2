package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/service"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/response"
)

// SettingsHandler exposes the enrollment gate endpoints.
type SettingsHandler struct {
	settings *service.SettingsService
}

// NewSettingsHandler constructs SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get godoc
// @Summary Current enrollment settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/enrollment [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Update enrollment settings (admin)
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /admin/settings/enrollment [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req service.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	settings, err := h.settings.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Stream godoc
// @Summary Live settings over SSE
// @Tags Settings
// @Produce text/event-stream
// @Router /settings/enrollment/stream [get]
func (h *SettingsHandler) Stream(c *gin.Context) {
	updates := make(chan models.EnrollmentSettings, 1)
	cancel, err := h.settings.Watch(func(settings models.EnrollmentSettings, werr error) {
		if werr != nil {
			return
		}
		select {
		case updates <- settings:
		default:
		}
	})
	if err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "live updates unavailable"))
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case settings := <-updates:
			c.SSEvent("settings", settings)
			return true
		}
	})
}
