package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/repository"
)

// Audit records an audit entry after each successful request it wraps.
func Audit(repo *repository.AuditRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID string
		if value, ok := c.Get(ContextUserKey); ok {
			if user, ok := value.(*models.User); ok {
				userID = user.ID
			}
		}

		_ = repo.Record(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: c.Param("id"),
			Detail:     fmt.Sprintf("%s %s -> %d", c.Request.Method, c.FullPath(), c.Writer.Status()),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}
