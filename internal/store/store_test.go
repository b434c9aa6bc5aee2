package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

func newStoreMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	s := New(sqlxDB)
	return s, mock, func() { db.Close() }
}

func TestStoreGet(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "doc", "updated_at"}).
		AddRow("e1", []byte(`{"fullName":"Juan"}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doc, updated_at FROM enrollments WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(rows)

	doc, err := s.Get(context.Background(), CollectionEnrollments, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", doc.ID)

	var body map[string]string
	require.NoError(t, doc.Decode(&body))
	assert.Equal(t, "Juan", body["fullName"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, doc, updated_at FROM enrollments WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doc", "updated_at"}))

	_, err := s.Get(context.Background(), CollectionEnrollments, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetUnknownCollection(t *testing.T) {
	s, _, cleanup := newStoreMock(t)
	defer cleanup()

	_, err := s.Get(context.Background(), "students; DROP TABLE", "e1")
	assert.Error(t, err)
}

func TestStoreInsertConflict(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments (id, doc, updated_at) VALUES ($1, $2, NOW())")).
		WithArgs("e1", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	err := s.Insert(context.Background(), CollectionEnrollments, "e1", map[string]string{"fullName": "Juan"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreUpdateMissingDocument(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET doc = doc || $2, updated_at = NOW() WHERE id = $1")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), CollectionEnrollments, "missing", map[string]interface{}{"status": "verified"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreQueryFilteredAndOrdered(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "doc", "updated_at"}).
		AddRow("e2", []byte(`{"status":"submitted"}`), time.Now()).
		AddRow("e1", []byte(`{"status":"submitted"}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, doc, updated_at FROM enrollments WHERE doc->>'status' = $1 ORDER BY doc->>'submittedAt' DESC, id DESC LIMIT 10")).
		WithArgs("submitted").
		WillReturnRows(rows)

	docs, err := s.Query(context.Background(), Query{
		Collection: CollectionEnrollments,
		Filters:    []Filter{{Field: "status", Value: "submitted"}},
		OrderBy:    "submittedAt",
		OrderDesc:  true,
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "e2", docs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreQueryRejectsUndeclaredIndex(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewWithIndexes(sqlx.NewDb(db, "postgres"), NewIndexManifest())

	_, err = s.Query(context.Background(), Query{
		Collection: CollectionEnrollments,
		Filters:    []Filter{{Field: "status", Value: "submitted"}},
		OrderBy:    "submittedAt",
	})
	assert.ErrorIs(t, err, apperrors.ErrIndexRequired)
	// No SQL reaches the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreQueryInMembership(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "doc", "updated_at"}).
		AddRow("e1", []byte(`{"status":"verified"}`), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, doc, updated_at FROM enrollments WHERE doc->>'status' = ANY($1)")).
		WithArgs(pq.Array([]string{"verified", "printed"})).
		WillReturnRows(rows)

	docs, err := s.Query(context.Background(), Query{
		Collection: CollectionEnrollments,
		Filters:    []Filter{{Field: "status", Op: "in", Value: []string{"verified", "printed"}}},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCount(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE doc->>'status' = $1")).
		WithArgs("submitted").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := s.Count(context.Background(), Query{
		Collection: CollectionEnrollments,
		Filters:    []Filter{{Field: "status", Value: "submitted"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCursorRoundTrip(t *testing.T) {
	last := Document{ID: "e1", Data: json.RawMessage(`{"submittedAt":"2026-06-01T08:00:00Z"}`)}
	token, err := NextCursor(Query{OrderBy: "submittedAt"}, last)
	require.NoError(t, err)

	cur, err := decodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "e1", cur.ID)
	assert.Equal(t, "2026-06-01T08:00:00Z", cur.Value)

	_, err = decodeCursor("%%not-a-cursor%%")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStoreBatchCommits(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO archived_enrollments (id, doc, updated_at) VALUES ($1, $2, NOW())")).
		WithArgs("a1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Batch(context.Background(), []BatchOp{
		InsertOp(CollectionArchivedEnrollments, "a1", map[string]string{"originalId": "e1"}),
		DeleteOp(CollectionEnrollments, "e1"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreBatchRollsBackOnMissingDocument(t *testing.T) {
	s, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET doc = doc || $2, updated_at = NOW() WHERE id = $1")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.Batch(context.Background(), []BatchOp{
		UpdateOp(CollectionEnrollments, "missing", map[string]interface{}{"status": "verified"}),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
