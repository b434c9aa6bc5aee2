package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/store"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/fieldcrypt"
)

type stubDocumentStore struct {
	getFn   func(collection, id string) (store.Document, error)
	queryFn func(q store.Query) ([]store.Document, error)
	countFn func(q store.Query) (int, error)
	batchFn func(ops []store.BatchOp) error

	getCalls   int
	queryCalls int
	batchOps   [][]store.BatchOp
}

func (s *stubDocumentStore) Get(_ context.Context, collection, id string) (store.Document, error) {
	s.getCalls++
	if s.getFn != nil {
		return s.getFn(collection, id)
	}
	return store.Document{}, apperrors.ErrNotFound
}

func (s *stubDocumentStore) Insert(context.Context, string, string, interface{}) error {
	return nil
}

func (s *stubDocumentStore) Set(context.Context, string, string, interface{}) error {
	return nil
}

func (s *stubDocumentStore) Update(context.Context, string, string, map[string]interface{}) error {
	return nil
}

func (s *stubDocumentStore) Delete(context.Context, string, string) error {
	return nil
}

func (s *stubDocumentStore) Query(_ context.Context, q store.Query) ([]store.Document, error) {
	s.queryCalls++
	if s.queryFn != nil {
		return s.queryFn(q)
	}
	return nil, nil
}

func (s *stubDocumentStore) Count(_ context.Context, q store.Query) (int, error) {
	if s.countFn != nil {
		return s.countFn(q)
	}
	return 0, nil
}

func (s *stubDocumentStore) Batch(_ context.Context, ops []store.BatchOp) error {
	s.batchOps = append(s.batchOps, ops)
	if s.batchFn != nil {
		return s.batchFn(ops)
	}
	return nil
}

func docFor(t *testing.T, e models.Enrollment) store.Document {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	return store.Document{ID: e.ID, Data: raw, UpdatedAt: time.Now()}
}

func newRepoUnderTest(docs *stubDocumentStore) (*EnrollmentRepository, *EnrollmentCache) {
	cache := NewEnrollmentCache(5*time.Minute, nil)
	repo := NewEnrollmentRepository(docs, cache, nil, nil, zap.NewNop(), 100)
	return repo, cache
}

func TestEnrollmentRepositoryGetByIDServesFromCache(t *testing.T) {
	docs := &stubDocumentStore{
		getFn: func(collection, id string) (store.Document, error) {
			return docFor(t, models.Enrollment{ID: id, FullName: "Juan"}), nil
		},
	}
	repo, _ := newRepoUnderTest(docs)

	first, err := repo.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "Juan", first.FullName)
	require.Equal(t, 1, docs.getCalls)

	second, err := repo.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, docs.getCalls)
}

func TestEnrollmentRepositoryCreateDropsOnlyPages(t *testing.T) {
	docs := &stubDocumentStore{}
	repo, cache := newRepoUnderTest(docs)
	cache.SetByID("e1", &models.Enrollment{ID: "e1"})
	cache.SetPage("all", CachedPage{Total: 1})

	err := repo.Create(context.Background(), &models.Enrollment{FullName: "Maria"})
	require.NoError(t, err)

	_, ok := cache.GetByID("e1")
	assert.True(t, ok)
	_, ok = cache.GetPage("all")
	assert.False(t, ok)
}

func TestEnrollmentRepositoryCreateAssignsIDAndTimestamps(t *testing.T) {
	docs := &stubDocumentStore{}
	repo, _ := newRepoUnderTest(docs)

	e := &models.Enrollment{FullName: "Maria"}
	require.NoError(t, repo.Create(context.Background(), e))
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.SubmittedAt.IsZero())
	assert.False(t, e.UpdatedAt.IsZero())
}

func TestEnrollmentRepositoryUpdateDropsWholeCache(t *testing.T) {
	docs := &stubDocumentStore{}
	repo, cache := newRepoUnderTest(docs)
	cache.SetByID("e1", &models.Enrollment{ID: "e1"})
	cache.SetPage("all", CachedPage{Total: 1})

	err := repo.Update(context.Background(), "e1", map[string]interface{}{"status": "verified"})
	require.NoError(t, err)

	ids, pages := cache.Len()
	assert.Zero(t, ids)
	assert.Zero(t, pages)
}

func TestEnrollmentRepositoryPaginate(t *testing.T) {
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	docs := &stubDocumentStore{
		queryFn: func(q store.Query) ([]store.Document, error) {
			// One more row than the page size signals another page.
			assert.Equal(t, 3, q.Limit)
			return []store.Document{
				docFor(t, models.Enrollment{ID: "e3", SubmittedAt: base.Add(2 * time.Hour)}),
				docFor(t, models.Enrollment{ID: "e2", SubmittedAt: base.Add(time.Hour)}),
				docFor(t, models.Enrollment{ID: "e1", SubmittedAt: base}),
			}, nil
		},
		countFn: func(q store.Query) (int, error) { return 12, nil },
	}
	repo, _ := newRepoUnderTest(docs)

	items, page, total, err := repo.Paginate(context.Background(), models.EnrollmentFilter{}, models.PageRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "e3", items[0].ID)
	assert.True(t, page.HasMore)
	assert.NotEmpty(t, page.NextCursor)
	assert.Equal(t, 12, total)

	// The same request is now answered from the page cache.
	_, _, _, err = repo.Paginate(context.Background(), models.EnrollmentFilter{}, models.PageRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, docs.queryCalls)
}

func TestEnrollmentRepositoryListFallsBackWithoutIndex(t *testing.T) {
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	docs := &stubDocumentStore{
		queryFn: func(q store.Query) ([]store.Document, error) {
			if q.OrderBy != "" {
				return nil, apperrors.ErrIndexRequired
			}
			return []store.Document{
				docFor(t, models.Enrollment{ID: "old", SubmittedAt: base}),
				docFor(t, models.Enrollment{ID: "new", SubmittedAt: base.Add(time.Hour)}),
				docFor(t, models.Enrollment{ID: "mid", SubmittedAt: base.Add(30 * time.Minute)}),
			}, nil
		},
	}
	repo, _ := newRepoUnderTest(docs)

	got, err := repo.List(context.Background(), models.EnrollmentFilter{Status: models.EnrollmentStatusSubmitted}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "mid", got[1].ID)
	assert.Equal(t, 2, docs.queryCalls)
}

func TestEnrollmentRepositorySearchRanksExactFirst(t *testing.T) {
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	docs := &stubDocumentStore{
		queryFn: func(q store.Query) ([]store.Document, error) {
			return []store.Document{
				docFor(t, models.Enrollment{ID: "partial", FullName: "Juanita Reyes", SubmittedAt: base.Add(time.Hour)}),
				docFor(t, models.Enrollment{ID: "exact", FullName: "Juanita", SubmittedAt: base}),
				docFor(t, models.Enrollment{ID: "miss", FullName: "Pedro Santos", SubmittedAt: base}),
			}, nil
		},
	}
	repo, _ := newRepoUnderTest(docs)

	got, err := repo.Search(context.Background(), "  Juanita ", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].ID)
	assert.Equal(t, "partial", got[1].ID)
}

func TestEnrollmentRepositorySearchTruncatesToPageSize(t *testing.T) {
	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	docs := &stubDocumentStore{
		queryFn: func(q store.Query) ([]store.Document, error) {
			out := make([]store.Document, 0, 5)
			for i := 0; i < 5; i++ {
				out = append(out, docFor(t, models.Enrollment{
					ID:          fmt.Sprintf("e%d", i),
					FullName:    "Juan Reyes",
					SubmittedAt: base.Add(-time.Duration(i) * time.Hour),
				}))
			}
			return out, nil
		},
	}
	repo, _ := newRepoUnderTest(docs)

	got, err := repo.Search(context.Background(), "juan", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ranking happens before the cut, so the newest matches survive.
	assert.Equal(t, "e0", got[0].ID)
	assert.Equal(t, "e1", got[1].ID)
}

func TestEnrollmentRepositorySearchDecryptsProbeFields(t *testing.T) {
	crypt := fieldcrypt.New("a-very-long-secret-for-testing-purposes")
	iv, err := fieldcrypt.NewIV()
	require.NoError(t, err)
	name, err := crypt.Encrypt("Maria Clara", iv)
	require.NoError(t, err)

	docs := &stubDocumentStore{
		queryFn: func(q store.Query) ([]store.Document, error) {
			return []store.Document{
				docFor(t, models.Enrollment{ID: "enc", FullName: name, Encrypted: true, IV: iv}),
			}, nil
		},
	}
	cache := NewEnrollmentCache(5*time.Minute, nil)
	repo := NewEnrollmentRepository(docs, cache, nil, crypt, zap.NewNop(), 100)

	got, err := repo.Search(context.Background(), "maria", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	// The stored record keeps its ciphertext.
	assert.Equal(t, name, got[0].FullName)
}

func TestEnrollmentRepositorySearchEmptyTerm(t *testing.T) {
	docs := &stubDocumentStore{}
	repo, _ := newRepoUnderTest(docs)

	got, err := repo.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, docs.queryCalls)
}

func TestEnrollmentRepositoryArchive(t *testing.T) {
	docs := &stubDocumentStore{
		getFn: func(collection, id string) (store.Document, error) {
			return docFor(t, models.Enrollment{ID: id, FullName: "Juan", Status: models.EnrollmentStatusPrinted}), nil
		},
	}
	repo, cache := newRepoUnderTest(docs)
	cache.SetByID("e1", &models.Enrollment{ID: "e1"})

	archivedID, err := repo.Archive(context.Background(), "e1", false)
	require.NoError(t, err)
	assert.NotEmpty(t, archivedID)
	assert.NotEqual(t, "e1", archivedID)

	// One atomic batch carries the archived copy and the original's flag.
	require.Len(t, docs.batchOps, 1)
	assert.Len(t, docs.batchOps[0], 2)

	ids, _ := cache.Len()
	assert.Zero(t, ids)
}

type stubWatcher struct {
	query     store.Query
	fn        store.SnapshotFunc
	cancelled bool
}

func (w *stubWatcher) Subscribe(q store.Query, fn store.SnapshotFunc) func() {
	w.query = q
	w.fn = fn
	return func() { w.cancelled = true }
}

func TestEnrollmentRepositoryWatch(t *testing.T) {
	watcher := &stubWatcher{}
	cache := NewEnrollmentCache(5*time.Minute, nil)
	repo := NewEnrollmentRepository(&stubDocumentStore{}, cache, watcher, nil, zap.NewNop(), 100)

	var got []*models.Enrollment
	cancel, err := repo.Watch(models.EnrollmentFilter{Status: models.EnrollmentStatusSubmitted}, func(enrollments []*models.Enrollment, werr error) {
		require.NoError(t, werr)
		got = enrollments
	})
	require.NoError(t, err)
	assert.Equal(t, store.CollectionEnrollments, watcher.query.Collection)
	require.Len(t, watcher.query.Filters, 1)
	assert.Equal(t, "status", watcher.query.Filters[0].Field)

	watcher.fn([]store.Document{docFor(t, models.Enrollment{ID: "e1", Status: models.EnrollmentStatusSubmitted})}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)

	cancel()
	assert.True(t, watcher.cancelled)
}

func TestEnrollmentRepositoryWatchRequiresListener(t *testing.T) {
	repo, _ := newRepoUnderTest(&stubDocumentStore{})

	_, err := repo.Watch(models.EnrollmentFilter{}, func([]*models.Enrollment, error) {})
	assert.Error(t, err)
}

func TestEnrollmentRepositoryStats(t *testing.T) {
	now := time.Now().UTC()
	docs := &stubDocumentStore{
		queryFn: func(q store.Query) ([]store.Document, error) {
			return []store.Document{
				docFor(t, models.Enrollment{ID: "a", Status: models.EnrollmentStatusSubmitted, Type: models.EnrollmentTypeJunior, SubmittedAt: now}),
				docFor(t, models.Enrollment{ID: "b", Status: models.EnrollmentStatusVerified, Type: models.EnrollmentTypeSenior, SubmittedAt: now.AddDate(0, 0, -3)}),
				docFor(t, models.Enrollment{ID: "c", Status: models.EnrollmentStatusSubmitted, Type: models.EnrollmentTypeJunior, SubmittedAt: now.AddDate(0, 0, -30)}),
			}, nil
		},
	}
	repo, _ := newRepoUnderTest(docs)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[models.EnrollmentStatusSubmitted])
	assert.Equal(t, 2, stats.ByType[models.EnrollmentTypeJunior])
	assert.Equal(t, 1, stats.TodayCount)
	assert.Equal(t, 2, stats.WeekCount)
}

func TestEnrollmentRepositoryRecentActivityFillsEmptyDays(t *testing.T) {
	now := time.Now().UTC()
	docs := &stubDocumentStore{
		queryFn: func(q store.Query) ([]store.Document, error) {
			return []store.Document{
				docFor(t, models.Enrollment{ID: "a", Status: models.EnrollmentStatusVerified, SubmittedAt: now}),
				docFor(t, models.Enrollment{ID: "b", Status: models.EnrollmentStatusRejected, SubmittedAt: now}),
			}, nil
		},
	}
	repo, _ := newRepoUnderTest(docs)

	buckets, err := repo.RecentActivity(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, buckets, 7)

	today := buckets[6]
	assert.Equal(t, now.Format("2006-01-02"), today.Date)
	assert.Equal(t, 2, today.Count)
	assert.Equal(t, 1, today.Verified)
	assert.Equal(t, 1, today.Rejected)
	for _, b := range buckets[:6] {
		assert.Zero(t, b.Count)
	}
}
