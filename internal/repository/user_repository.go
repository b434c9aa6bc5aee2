package repository

import (
	"context"
	"errors"
	"time"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/store"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

// UserRepository manages principal records keyed by token uid.
type UserRepository struct {
	store DocumentStore
}

// NewUserRepository constructs the repository.
func NewUserRepository(docs DocumentStore) *UserRepository {
	return &UserRepository{store: docs}
}

// Get reads one user by uid.
func (r *UserRepository) Get(ctx context.Context, uid string) (*models.User, error) {
	doc, err := r.store.Get(ctx, store.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := doc.Decode(&user); err != nil {
		return nil, err
	}
	user.ID = doc.ID
	return &user, nil
}

// GetByEmail finds a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: store.CollectionUsers,
		Filters:    []store.Filter{{Field: "email", Value: email}},
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperrors.ErrNotFound
	}
	var user models.User
	if err := docs[0].Decode(&user); err != nil {
		return nil, err
	}
	user.ID = docs[0].ID
	return &user, nil
}

// Ensure returns the stored user for the principal, creating a student record
// on first sight. The stored role always wins over anything in the token.
func (r *UserRepository) Ensure(ctx context.Context, principal models.Principal) (*models.User, error) {
	user, err := r.Get(ctx, principal.UID)
	if err == nil {
		r.touch(ctx, user.ID)
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	user = &models.User{
		ID:          principal.UID,
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		PhotoURL:    principal.PhotoURL,
		Role:        models.RoleStudent,
		CreatedAt:   now,
		LastSeenAt:  now,
	}
	if err := r.store.Insert(ctx, store.CollectionUsers, user.ID, user); err != nil {
		// A concurrent first request may have created it already.
		if errors.Is(err, apperrors.ErrConflict) {
			return r.Get(ctx, principal.UID)
		}
		return nil, err
	}
	return user, nil
}

// SetRole changes a user's role.
func (r *UserRepository) SetRole(ctx context.Context, uid string, role models.UserRole) error {
	return r.store.Update(ctx, store.CollectionUsers, uid, map[string]interface{}{"role": role})
}

// List returns every user, newest first.
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: store.CollectionUsers,
		OrderBy:    "createdAt",
		OrderDesc:  true,
	})
	if err != nil {
		return nil, err
	}
	users := make([]*models.User, 0, len(docs))
	for _, doc := range docs {
		var user models.User
		if err := doc.Decode(&user); err != nil {
			return nil, err
		}
		user.ID = doc.ID
		users = append(users, &user)
	}
	return users, nil
}

// touch bumps lastSeenAt. Failures are ignored; the field is advisory.
func (r *UserRepository) touch(ctx context.Context, uid string) {
	_ = r.store.Update(ctx, store.CollectionUsers, uid, map[string]interface{}{
		"lastSeenAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
