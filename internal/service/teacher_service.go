package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

type teacherRepository interface {
	List(ctx context.Context) ([]*models.Teacher, error)
	Get(ctx context.Context, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, id string, patch map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

// TeacherRequest holds payload for creating or replacing roster entries.
type TeacherRequest struct {
	Name       string `json:"name" validate:"required"`
	Position   string `json:"position" validate:"required"`
	Department string `json:"department" validate:"required"`
	ImageURL   string `json:"imageUrl" validate:"omitempty,url"`
	Email      string `json:"email" validate:"omitempty,email"`
	Order      int    `json:"order" validate:"gte=0"`
}

// TeacherService manages the faculty roster.
type TeacherService struct {
	repo      teacherRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs the service.
func NewTeacherService(repo teacherRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns the roster in display order.
func (s *TeacherService) List(ctx context.Context) ([]*models.Teacher, error) {
	teachers, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// Get returns one roster entry.
func (s *TeacherService) Get(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapReadErr(err, "teacher not found")
	}
	return teacher, nil
}

// Create adds a roster entry.
func (s *TeacherService) Create(ctx context.Context, req TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher := &models.Teacher{
		Name:       req.Name,
		Position:   req.Position,
		Department: req.Department,
		ImageURL:   req.ImageURL,
		Email:      req.Email,
		Order:      req.Order,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create teacher")
	}
	return teacher, nil
}

// Update replaces a roster entry's fields.
func (s *TeacherService) Update(ctx context.Context, id string, req TeacherRequest) (*models.Teacher, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid teacher payload")
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, mapReadErr(err, "teacher not found")
	}
	patch := map[string]interface{}{
		"name":       req.Name,
		"position":   req.Position,
		"department": req.Department,
		"imageUrl":   req.ImageURL,
		"email":      req.Email,
		"order":      req.Order,
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update teacher")
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a roster entry.
func (s *TeacherService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return mapReadErr(err, "teacher not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to delete teacher")
	}
	return nil
}
