package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

type newsRepository interface {
	ListPublished(ctx context.Context, limit int) ([]*models.NewsPost, error)
	ListAll(ctx context.Context) ([]*models.NewsPost, error)
	Get(ctx context.Context, id string) (*models.NewsPost, error)
	Create(ctx context.Context, post *models.NewsPost) error
	Update(ctx context.Context, id string, patch map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

// NewsRequest holds payload for creating or replacing posts.
type NewsRequest struct {
	Title       string `json:"title" validate:"required"`
	Content     string `json:"content" validate:"required"`
	Excerpt     string `json:"excerpt"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
	Author      string `json:"author" validate:"required"`
	IsPublished bool   `json:"isPublished"`
}

// NewsService manages announcements.
type NewsService struct {
	repo      newsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNewsService constructs the service.
func NewNewsService(repo newsRepository, validate *validator.Validate, logger *zap.Logger) *NewsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsService{repo: repo, validator: validate, logger: logger}
}

// Feed returns the public feed of published posts.
func (s *NewsService) Feed(ctx context.Context, limit int) ([]*models.NewsPost, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	posts, err := s.repo.ListPublished(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load news feed")
	}
	return posts, nil
}

// ListAll returns every post for the admin panel.
func (s *NewsService) ListAll(ctx context.Context) ([]*models.NewsPost, error) {
	posts, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to list news")
	}
	return posts, nil
}

// Get returns one post. Unpublished posts are admin-only; the handler gates
// that before calling here.
func (s *NewsService) Get(ctx context.Context, id string) (*models.NewsPost, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapReadErr(err, "post not found")
	}
	return post, nil
}

// Create adds a post.
func (s *NewsService) Create(ctx context.Context, req NewsRequest) (*models.NewsPost, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid news payload")
	}
	post := &models.NewsPost{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		ImageURL:    req.ImageURL,
		Author:      req.Author,
		IsPublished: req.IsPublished,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create post")
	}
	return post, nil
}

// Update replaces a post's fields.
func (s *NewsService) Update(ctx context.Context, id string, req NewsRequest) (*models.NewsPost, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid news payload")
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, mapReadErr(err, "post not found")
	}
	patch := map[string]interface{}{
		"title":       req.Title,
		"content":     req.Content,
		"excerpt":     req.Excerpt,
		"imageUrl":    req.ImageURL,
		"author":      req.Author,
		"isPublished": req.IsPublished,
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update post")
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a post.
func (s *NewsService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return mapReadErr(err, "post not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to delete post")
	}
	return nil
}
