package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/service"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/response"
)

// EnrollmentHandler exposes the submission and admin review endpoints.
type EnrollmentHandler struct {
	enrollments     *service.EnrollmentService
	defaultPageSize int
	maxPageSize     int
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, defaultPageSize, maxPageSize int) *EnrollmentHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	return &EnrollmentHandler{enrollments: enrollments, defaultPageSize: defaultPageSize, maxPageSize: maxPageSize}
}

// Submit godoc
// @Summary Submit an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.Enrollment true "Enrollment form"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	var enrollment models.Enrollment
	if err := c.ShouldBindJSON(&enrollment); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	created, err := h.enrollments.Submit(c.Request.Context(), models.Principal{
		UID:         user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, &enrollment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Mine godoc
// @Summary List the caller's enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enrollments/mine [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.enrollments.ListMine(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Get godoc
// @Summary Get one enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Update godoc
// @Summary Amend an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body models.Enrollment true "Updated form"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	var enrollment models.Enrollment
	if err := c.ShouldBindJSON(&enrollment); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	updated, err := h.enrollments.Update(c.Request.Context(), user, c.Param("id"), &enrollment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// AdminList godoc
// @Summary List enrollments (admin)
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by type"
// @Param schoolYear query string false "Filter by school year"
// @Param limit query int false "Page size"
// @Param cursor query string false "Resume cursor"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments [get]
func (h *EnrollmentHandler) AdminList(c *gin.Context) {
	filter := models.EnrollmentFilter{
		Status:     models.EnrollmentStatus(c.Query("status")),
		Type:       models.EnrollmentType(c.Query("type")),
		SchoolYear: c.Query("schoolYear"),
	}
	page := models.PageRequest{
		Cursor:   c.Query("cursor"),
		OrderBy:  c.Query("sort"),
		OrderDir: c.Query("order"),
		PageSize: h.defaultPageSize,
	}
	if size, err := strconv.Atoi(c.Query("limit")); err == nil && size > 0 {
		page.PageSize = size
	}
	if page.PageSize > h.maxPageSize {
		page.PageSize = h.maxPageSize
	}
	enrollments, info, total, err := h.enrollments.AdminList(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, &info, map[string]interface{}{"total": total})
}

// Search godoc
// @Summary Search enrollments (admin)
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param q query string true "Search term"
// @Param limit query int false "Result cap"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/search [get]
func (h *EnrollmentHandler) Search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		response.Error(c, apperrors.Clone(apperrors.ErrValidation, "search term is required"))
		return
	}
	pageSize := 10
	if size, err := strconv.Atoi(c.Query("limit")); err == nil && size > 0 {
		pageSize = size
	}
	if pageSize > h.maxPageSize {
		pageSize = h.maxPageSize
	}
	enrollments, err := h.enrollments.Search(c.Request.Context(), term, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// UpdateStatus godoc
// @Summary Move an enrollment along the lifecycle (admin)
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /admin/enrollments/{id}/status [put]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status models.EnrollmentStatus `json:"status"`
		Reason string                  `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.enrollments.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchStatus godoc
// @Summary Batch status update (admin)
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 204
// @Router /admin/enrollments/batch/status [post]
func (h *EnrollmentHandler) BatchStatus(c *gin.Context) {
	var req struct {
		IDs    []string                `json:"ids"`
		Status models.EnrollmentStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.enrollments.BatchUpdateStatus(c.Request.Context(), req.IDs, req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchDelete godoc
// @Summary Batch delete (admin)
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 204
// @Router /admin/enrollments/batch/delete [post]
func (h *EnrollmentHandler) BatchDelete(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.enrollments.BatchDelete(c.Request.Context(), req.IDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete an enrollment (admin)
// @Tags Enrollments
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /admin/enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Archive godoc
// @Summary Archive an enrollment (admin)
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id}/archive [post]
func (h *EnrollmentHandler) Archive(c *gin.Context) {
	archivedID, err := h.enrollments.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"archived_id": archivedID}, nil)
}

// ListArchived godoc
// @Summary List archived enrollments (admin)
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param schoolYear query string false "Filter by school year"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/archived [get]
func (h *EnrollmentHandler) ListArchived(c *gin.Context) {
	enrollments, err := h.enrollments.ListArchived(c.Request.Context(), c.Query("schoolYear"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Stream godoc
// @Summary Live enrollment list over SSE (admin)
// @Tags Enrollments
// @Produce text/event-stream
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Router /admin/enrollments/stream [get]
func (h *EnrollmentHandler) Stream(c *gin.Context) {
	filter := models.EnrollmentFilter{
		Status:     models.EnrollmentStatus(c.Query("status")),
		Type:       models.EnrollmentType(c.Query("type")),
		SchoolYear: c.Query("schoolYear"),
	}

	updates := make(chan []*models.Enrollment, 1)
	cancel, err := h.enrollments.Watch(filter, func(enrollments []*models.Enrollment, werr error) {
		if werr != nil {
			return
		}
		select {
		case updates <- enrollments:
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
		case enrollments := <-updates:
			c.SSEvent("enrollments", enrollments)
			return true
		}
	})
}
