package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/repository"
	"github.com/snchs-registrar/enrollment-api/internal/store"
)

type captureStore struct {
	inserted []interface{}
}

func (s *captureStore) Get(context.Context, string, string) (store.Document, error) {
	return store.Document{}, nil
}

func (s *captureStore) Insert(_ context.Context, _, _ string, body interface{}) error {
	s.inserted = append(s.inserted, body)
	return nil
}

func (s *captureStore) Set(context.Context, string, string, interface{}) error { return nil }

func (s *captureStore) Update(context.Context, string, string, map[string]interface{}) error {
	return nil
}

func (s *captureStore) Delete(context.Context, string, string) error { return nil }

func (s *captureStore) Query(context.Context, store.Query) ([]store.Document, error) {
	return nil, nil
}

func (s *captureStore) Count(context.Context, store.Query) (int, error) { return 0, nil }

func (s *captureStore) Batch(context.Context, []store.BatchOp) error { return nil }

func TestAuditRecordsSuccessfulMutations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	docs := &captureStore{}
	repo := repository.NewAuditRepository(docs)

	router := gin.New()
	router.DELETE("/enrollments/:id",
		func(c *gin.Context) { c.Set(ContextUserKey, &models.User{ID: "registrar"}) },
		Audit(repo, "delete", "enrollment"),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/enrollments/e1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Len(t, docs.inserted, 1)
	entry, ok := docs.inserted[0].(*models.AuditLog)
	require.True(t, ok)
	assert.Equal(t, "registrar", entry.UserID)
	assert.Equal(t, "delete", entry.Action)
	assert.Equal(t, "enrollment", entry.Resource)
	assert.Equal(t, "e1", entry.ResourceID)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	docs := &captureStore{}
	repo := repository.NewAuditRepository(docs)

	router := gin.New()
	router.DELETE("/enrollments/:id",
		Audit(repo, "delete", "enrollment"),
		func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/enrollments/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, docs.inserted)
}
