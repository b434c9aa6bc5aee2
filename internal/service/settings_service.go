package service

import (
	"context"
	"regexp"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (models.EnrollmentSettings, error)
	Set(ctx context.Context, settings models.EnrollmentSettings) error
	Watch(fn func(models.EnrollmentSettings, error)) (func(), error)
}

var schoolYearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// SettingsRequest holds payload for replacing enrollment settings.
type SettingsRequest struct {
	IsOpen         bool   `json:"isOpen"`
	SchoolYear     string `json:"schoolYear" validate:"required"`
	JuniorHighOpen bool   `json:"juniorHighOpen"`
	SeniorHighOpen bool   `json:"seniorHighOpen"`
	Message        string `json:"message" validate:"max=500"`
}

// SettingsService manages the enrollment gate.
type SettingsService struct {
	repo      settingsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs the service.
func NewSettingsService(repo settingsRepository, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, validator: validate, logger: logger}
}

// Get returns the current settings, defaults included when unset.
func (s *SettingsService) Get(ctx context.Context) (models.EnrollmentSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return models.EnrollmentSettings{}, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load settings")
	}
	return settings, nil
}

// Update replaces the settings.
func (s *SettingsService) Update(ctx context.Context, req SettingsRequest) (models.EnrollmentSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.EnrollmentSettings{}, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid settings payload")
	}
	if !schoolYearPattern.MatchString(req.SchoolYear) {
		return models.EnrollmentSettings{}, apperrors.FieldErrors{"schoolYear": "school year must look like 2025-2026"}
	}
	settings := models.EnrollmentSettings{
		IsOpen:         req.IsOpen,
		SchoolYear:     req.SchoolYear,
		JuniorHighOpen: req.JuniorHighOpen,
		SeniorHighOpen: req.SeniorHighOpen,
		Message:        req.Message,
	}
	if err := s.repo.Set(ctx, settings); err != nil {
		return models.EnrollmentSettings{}, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to save settings")
	}
	s.logger.Info("enrollment settings updated",
		zap.Bool("is_open", settings.IsOpen),
		zap.String("school_year", settings.SchoolYear))
	return settings, nil
}

// Watch streams settings changes until the disposer is called.
func (s *SettingsService) Watch(fn func(models.EnrollmentSettings, error)) (func(), error) {
	return s.repo.Watch(fn)
}
