package models

import "time"

// AuditLog records an admin mutation for the audit trail.
type AuditLog struct {
	ID         string    `json:"id,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	IPAddress  string    `json:"ipAddress,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
