package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/middleware"
	"github.com/snchs-registrar/enrollment-api/internal/models"
)

func userFromContext(c *gin.Context) *models.User {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
