package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/service"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/response"
)

// AuthHandler exposes login and user administration endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Bootstrap admin login
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Me godoc
// @Summary Current user profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := userFromContext(c)
	if user == nil {
		response.Error(c, apperrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ListUsers godoc
// @Summary List users
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// SetRole godoc
// @Summary Change a user's role
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Router /admin/users/{id}/role [put]
func (h *AuthHandler) SetRole(c *gin.Context) {
	var req struct {
		Role models.UserRole `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.auth.SetRole(c.Request.Context(), c.Param("id"), req.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
