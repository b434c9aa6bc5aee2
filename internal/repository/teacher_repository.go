package repository

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/store"
)

// TeacherRepository manages the public faculty roster.
type TeacherRepository struct {
	store DocumentStore
}

// NewTeacherRepository constructs the repository.
func NewTeacherRepository(docs DocumentStore) *TeacherRepository {
	return &TeacherRepository{store: docs}
}

// List returns the roster in admin-defined order.
func (r *TeacherRepository) List(ctx context.Context) ([]*models.Teacher, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: store.CollectionTeachers,
		OrderBy:    "order",
	})
	if err != nil {
		return nil, err
	}
	teachers := make([]*models.Teacher, 0, len(docs))
	for _, doc := range docs {
		var t models.Teacher
		if err := doc.Decode(&t); err != nil {
			return nil, err
		}
		t.ID = doc.ID
		teachers = append(teachers, &t)
	}
	// The order field is stored as a JSON number and compared as text by the
	// store, so re-sort numerically.
	sort.SliceStable(teachers, func(i, j int) bool { return teachers[i].Order < teachers[j].Order })
	return teachers, nil
}

// Get reads one roster entry.
func (r *TeacherRepository) Get(ctx context.Context, id string) (*models.Teacher, error) {
	doc, err := r.store.Get(ctx, store.CollectionTeachers, id)
	if err != nil {
		return nil, err
	}
	var t models.Teacher
	if err := doc.Decode(&t); err != nil {
		return nil, err
	}
	t.ID = doc.ID
	return &t, nil
}

// Create adds a roster entry and returns its id.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	return r.store.Insert(ctx, store.CollectionTeachers, teacher.ID, teacher)
}

// Update merges the patch into a roster entry.
func (r *TeacherRepository) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	return r.store.Update(ctx, store.CollectionTeachers, id, patch)
}

// Delete removes a roster entry.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.CollectionTeachers, id)
}
