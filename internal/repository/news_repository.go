package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/store"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

// NewsRepository manages announcements.
type NewsRepository struct {
	store  DocumentStore
	logger *zap.Logger
}

// NewNewsRepository constructs the repository.
func NewNewsRepository(docs DocumentStore, logger *zap.Logger) *NewsRepository {
	return &NewsRepository{store: docs, logger: logger}
}

// ListPublished returns published posts, newest first, capped at limit. The
// combined filter+order falls back to an unordered read when the composite
// index is missing.
func (r *NewsRepository) ListPublished(ctx context.Context, limit int) ([]*models.NewsPost, error) {
	q := store.Query{
		Collection: store.CollectionNews,
		Filters:    []store.Filter{{Field: "isPublished", Value: true}},
		OrderBy:    "publishedAt",
		OrderDesc:  true,
		Limit:      limit,
	}
	docs, err := r.store.Query(ctx, q)
	if errors.Is(err, apperrors.ErrIndexRequired) {
		r.logger.Warn("news query missing composite index, sorting in memory", zap.Error(err))
		fallback := q
		fallback.OrderBy = ""
		fallback.Limit = 0
		docs, err = r.store.Query(ctx, fallback)
		if err != nil {
			return nil, err
		}
		posts, derr := decodeNews(docs)
		if derr != nil {
			return nil, derr
		}
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].PublishedAt.After(posts[j].PublishedAt) })
		if limit > 0 && len(posts) > limit {
			posts = posts[:limit]
		}
		return posts, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeNews(docs)
}

// ListAll returns every post for the admin panel, newest first.
func (r *NewsRepository) ListAll(ctx context.Context) ([]*models.NewsPost, error) {
	docs, err := r.store.Query(ctx, store.Query{
		Collection: store.CollectionNews,
		OrderBy:    "publishedAt",
		OrderDesc:  true,
	})
	if err != nil {
		return nil, err
	}
	return decodeNews(docs)
}

// Get reads one post.
func (r *NewsRepository) Get(ctx context.Context, id string) (*models.NewsPost, error) {
	doc, err := r.store.Get(ctx, store.CollectionNews, id)
	if err != nil {
		return nil, err
	}
	var post models.NewsPost
	if err := doc.Decode(&post); err != nil {
		return nil, err
	}
	post.ID = doc.ID
	return &post, nil
}

// Create adds a post and returns its id.
func (r *NewsRepository) Create(ctx context.Context, post *models.NewsPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if post.PublishedAt.IsZero() {
		post.PublishedAt = now
	}
	post.UpdatedAt = now
	return r.store.Insert(ctx, store.CollectionNews, post.ID, post)
}

// Update merges the patch into a post.
func (r *NewsRepository) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	patch["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	return r.store.Update(ctx, store.CollectionNews, id, patch)
}

// Delete removes a post.
func (r *NewsRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, store.CollectionNews, id)
}

func decodeNews(docs []store.Document) ([]*models.NewsPost, error) {
	posts := make([]*models.NewsPost, 0, len(docs))
	for _, doc := range docs {
		var post models.NewsPost
		if err := doc.Decode(&post); err != nil {
			return nil, err
		}
		post.ID = doc.ID
		posts = append(posts, &post)
	}
	return posts, nil
}
