package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/store"
)

// AuditRepository appends to and reads the admin audit trail.
type AuditRepository struct {
	store DocumentStore
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(docs DocumentStore) *AuditRepository {
	return &AuditRepository{store: docs}
}

// Record appends one audit entry.
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.store.Insert(ctx, store.CollectionAuditLogs, entry.ID, entry)
}

// List returns the newest entries up to limit.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: store.CollectionAuditLogs,
		OrderBy:    "createdAt",
		OrderDesc:  true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]*models.AuditLog, 0, len(docs))
	for _, doc := range docs {
		var entry models.AuditLog
		if err := doc.Decode(&entry); err != nil {
			return nil, err
		}
		entry.ID = doc.ID
		entries = append(entries, &entry)
	}
	return entries, nil
}
