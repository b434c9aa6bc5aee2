package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

type dashboardRepository interface {
	Stats(ctx context.Context) (*models.EnrollmentStats, error)
	RecentActivity(ctx context.Context, days int) ([]models.ActivityBucket, error)
}

// DashboardService aggregates numbers for the admin dashboard.
type DashboardService struct {
	repo   dashboardRepository
	logger *zap.Logger
}

// NewDashboardService constructs the service.
func NewDashboardService(repo dashboardRepository, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, logger: logger}
}

// Stats returns collection-wide tallies.
func (s *DashboardService) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to compute stats")
	}
	return stats, nil
}

// RecentActivity returns the trailing per-day series.
func (s *DashboardService) RecentActivity(ctx context.Context, days int) ([]models.ActivityBucket, error) {
	if days <= 0 || days > 31 {
		days = 7
	}
	activity, err := s.repo.RecentActivity(ctx, days)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to compute activity")
	}
	return activity, nil
}
