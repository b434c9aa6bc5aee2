package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/service"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/response"
)

// NewsHandler exposes announcement endpoints.
type NewsHandler struct {
	news *service.NewsService
}

// NewNewsHandler constructs NewsHandler.
func NewNewsHandler(news *service.NewsService) *NewsHandler {
	return &NewsHandler{news: news}
}

// Feed godoc
// @Summary Public news feed
// @Tags News
// @Produce json
// @Param limit query int false "Max posts"
// @Success 200 {object} response.Envelope
// @Router /news [get]
func (h *NewsHandler) Feed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	posts, err := h.news.Feed(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posts, nil)
}

// Get godoc
// @Summary Get one post
// @Tags News
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} response.Envelope
// @Router /news/{id} [get]
func (h *NewsHandler) Get(c *gin.Context) {
	post, err := h.news.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	user := userFromContext(c)
	if !post.IsPublished && (user == nil || user.Role != models.RoleAdmin) {
		response.Error(c, apperrors.Clone(apperrors.ErrNotFound, "post not found"))
		return
	}
	response.JSON(c, http.StatusOK, post, nil)
}

// ListAll godoc
// @Summary List all posts (admin)
// @Tags News
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/news [get]
func (h *NewsHandler) ListAll(c *gin.Context) {
	posts, err := h.news.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, posts, nil)
}

// Create godoc
// @Summary Create a post (admin)
// @Tags News
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.NewsRequest true "Post payload"
// @Success 201 {object} response.Envelope
// @Router /admin/news [post]
func (h *NewsHandler) Create(c *gin.Context) {
	var req service.NewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	post, err := h.news.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, post)
}

// Update godoc
// @Summary Update a post (admin)
// @Tags News
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param payload body service.NewsRequest true "Post payload"
// @Success 200 {object} response.Envelope
// @Router /admin/news/{id} [put]
func (h *NewsHandler) Update(c *gin.Context) {
	var req service.NewsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	post, err := h.news.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, post, nil)
}

// Delete godoc
// @Summary Delete a post (admin)
// @Tags News
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Success 204
// @Router /admin/news/{id} [delete]
func (h *NewsHandler) Delete(c *gin.Context) {
	if err := h.news.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
