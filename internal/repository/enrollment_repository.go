package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/store"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/fieldcrypt"
)

// DocumentStore is the slice of the store the repositories depend on.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (store.Document, error)
	Insert(ctx context.Context, collection, id string, body interface{}) error
	Set(ctx context.Context, collection, id string, body interface{}) error
	Update(ctx context.Context, collection, id string, patch map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q store.Query) ([]store.Document, error)
	Count(ctx context.Context, q store.Query) (int, error)
	Batch(ctx context.Context, ops []store.BatchOp) error
}

// ChangeWatcher delivers live query results. Satisfied by store.Watcher.
type ChangeWatcher interface {
	Subscribe(q store.Query, fn store.SnapshotFunc) func()
}

// CacheMetrics records cache hit/miss counts. Satisfied by the metrics
// service.
type CacheMetrics interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

// defaultSearchPageSize bounds search results when the caller gives no size.
const defaultSearchPageSize = 10

// EnrollmentRepository mediates all enrollment reads and writes, fronting the
// store with the TTL cache.
type EnrollmentRepository struct {
	store       DocumentStore
	cache       *EnrollmentCache
	watcher     ChangeWatcher
	crypt       *fieldcrypt.Encryptor
	metrics     CacheMetrics
	logger      *zap.Logger
	prefetchCap int
}

// SetMetrics wires the cache hit/miss recorder. Optional.
func (r *EnrollmentRepository) SetMetrics(metrics CacheMetrics) {
	r.metrics = metrics
}

func (r *EnrollmentRepository) recordCache(hit bool, started time.Time) {
	if r.metrics != nil {
		r.metrics.RecordCacheOperation(hit, time.Since(started))
	}
}

// NewEnrollmentRepository constructs the repository. prefetchCap bounds how
// many records a search scans; a nil watcher disables Watch.
func NewEnrollmentRepository(docs DocumentStore, cache *EnrollmentCache, watcher ChangeWatcher, crypt *fieldcrypt.Encryptor, logger *zap.Logger, prefetchCap int) *EnrollmentRepository {
	if prefetchCap <= 0 {
		prefetchCap = 100
	}
	return &EnrollmentRepository{store: docs, cache: cache, watcher: watcher, crypt: crypt, logger: logger, prefetchCap: prefetchCap}
}

// Watch streams the filtered list to fn on every collection change. The
// returned disposer must be called when the consumer goes away.
func (r *EnrollmentRepository) Watch(filter models.EnrollmentFilter, fn func([]*models.Enrollment, error)) (func(), error) {
	if r.watcher == nil {
		return nil, fmt.Errorf("change watcher not configured")
	}
	q := store.Query{
		Collection: store.CollectionEnrollments,
		Filters:    storeFilters(filter),
		OrderBy:    "submittedAt",
		OrderDesc:  true,
	}
	cancel := r.watcher.Subscribe(q, func(docs []store.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		enrollments, derr := decodeEnrollments(docs)
		fn(enrollments, derr)
	})
	return cancel, nil
}

// Create persists a new enrollment and returns its generated id. Page caches
// are dropped; per-id entries cannot be staled by a create.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.SubmittedAt.IsZero() {
		enrollment.SubmittedAt = now
	}
	enrollment.UpdatedAt = now
	if err := r.store.Insert(ctx, store.CollectionEnrollments, enrollment.ID, enrollment); err != nil {
		return err
	}
	r.cache.InvalidatePages()
	return nil
}

// GetByID reads one enrollment, serving from cache when fresh.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*models.Enrollment, error) {
	started := time.Now()
	if cached, ok := r.cache.GetByID(id); ok {
		r.recordCache(true, started)
		return cached, nil
	}
	r.recordCache(false, started)
	doc, err := r.store.Get(ctx, store.CollectionEnrollments, id)
	if err != nil {
		return nil, err
	}
	enrollment, err := decodeEnrollment(doc)
	if err != nil {
		return nil, err
	}
	r.cache.SetByID(id, enrollment)
	return enrollment, nil
}

// GetByUser returns a user's submissions, newest first.
func (r *EnrollmentRepository) GetByUser(ctx context.Context, userID string) ([]*models.Enrollment, error) {
	return r.List(ctx, models.EnrollmentFilter{UserID: userID}, 0)
}

// List runs a filtered read ordered by submission time, newest first. When
// the store refuses the combined filter+order for lack of a composite index,
// the read is retried unordered and sorted here; the result is the same, only
// slower, and the condition is logged so the index gets declared.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter, limit int) ([]*models.Enrollment, error) {
	q := store.Query{
		Collection: store.CollectionEnrollments,
		Filters:    storeFilters(filter),
		OrderBy:    "submittedAt",
		OrderDesc:  true,
		Limit:      limit,
	}
	docs, err := r.store.Query(ctx, q)
	if errors.Is(err, apperrors.ErrIndexRequired) {
		r.logger.Warn("enrollment query missing composite index, sorting in memory", zap.Error(err))
		fallback := q
		fallback.OrderBy = ""
		fallback.Limit = 0
		docs, err = r.store.Query(ctx, fallback)
		if err != nil {
			return nil, err
		}
		enrollments, derr := decodeEnrollments(docs)
		if derr != nil {
			return nil, derr
		}
		sortBySubmittedDesc(enrollments)
		if limit > 0 && len(enrollments) > limit {
			enrollments = enrollments[:limit]
		}
		return enrollments, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeEnrollments(docs)
}

// Paginate returns one cursor page plus the total matching count. Page
// results are cached under the canonical request key.
func (r *EnrollmentRepository) Paginate(ctx context.Context, filter models.EnrollmentFilter, page models.PageRequest) ([]*models.Enrollment, models.PageInfo, int, error) {
	started := time.Now()
	key := pageKey(filter, page)
	if cached, ok := r.cache.GetPage(key); ok {
		r.recordCache(true, started)
		return cached.Items, cached.Page, cached.Total, nil
	}
	r.recordCache(false, started)

	orderBy := page.OrderBy
	if orderBy == "" {
		orderBy = "submittedAt"
	}
	q := store.Query{
		Collection: store.CollectionEnrollments,
		Filters:    storeFilters(filter),
		OrderBy:    orderBy,
		OrderDesc:  !strings.EqualFold(page.OrderDir, "asc"),
		Limit:      page.PageSize + 1,
		Cursor:     page.Cursor,
	}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, models.PageInfo{}, 0, err
	}
	total, err := r.store.Count(ctx, store.Query{Collection: store.CollectionEnrollments, Filters: q.Filters})
	if err != nil {
		return nil, models.PageInfo{}, 0, err
	}

	hasMore := len(docs) > page.PageSize
	if hasMore {
		docs = docs[:page.PageSize]
	}
	enrollments, err := decodeEnrollments(docs)
	if err != nil {
		return nil, models.PageInfo{}, 0, err
	}

	info := models.PageInfo{PageSize: page.PageSize, HasMore: hasMore}
	if hasMore && len(docs) > 0 {
		cursor, err := store.NextCursor(q, docs[len(docs)-1])
		if err != nil {
			return nil, models.PageInfo{}, 0, err
		}
		info.NextCursor = cursor
	}

	r.cache.SetPage(key, CachedPage{Items: enrollments, Page: info, Total: total})
	return enrollments, info, total, nil
}

// Search scans a bounded window of recent enrollments for a case-insensitive
// substring across name, LRN, email and contact number. Encrypted fields are
// decrypted in memory for matching only; stored records are returned as-is.
// Exact matches rank before partial ones; within a rank, newer submissions
// come first. The ranked result is truncated to pageSize.
func (r *EnrollmentRepository) Search(ctx context.Context, term string, pageSize int) ([]*models.Enrollment, error) {
	if pageSize <= 0 {
		pageSize = defaultSearchPageSize
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return nil, nil
	}
	docs, err := r.store.Query(ctx, store.Query{
		Collection: store.CollectionEnrollments,
		OrderBy:    "submittedAt",
		OrderDesc:  true,
		Limit:      r.prefetchCap,
	})
	if err != nil {
		return nil, err
	}
	enrollments, err := decodeEnrollments(docs)
	if err != nil {
		return nil, err
	}

	hash := fieldcrypt.SearchHash(needle)
	type ranked struct {
		enrollment *models.Enrollment
		exact      bool
	}
	var matches []ranked
	for _, e := range enrollments {
		exact, partial := false, false
		for _, f := range r.probeFields(e) {
			low := strings.ToLower(f)
			if low == needle {
				exact = true
			}
			if strings.Contains(low, needle) {
				partial = true
			}
		}
		if e.SearchHash != "" && e.SearchHash == hash {
			exact, partial = true, true
		}
		if partial {
			matches = append(matches, ranked{enrollment: e, exact: exact})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].exact != matches[j].exact {
			return matches[i].exact
		}
		return matches[i].enrollment.SubmittedAt.After(matches[j].enrollment.SubmittedAt)
	})

	if len(matches) > pageSize {
		matches = matches[:pageSize]
	}
	out := make([]*models.Enrollment, len(matches))
	for i, m := range matches {
		out[i] = m.enrollment
	}
	return out, nil
}

// probeFields returns the searchable field values in plaintext. Fields that
// fail to decrypt are skipped rather than matched against ciphertext.
func (r *EnrollmentRepository) probeFields(e *models.Enrollment) []string {
	if !e.Encrypted || r.crypt == nil {
		return []string{e.FullName, e.LRN, e.UserEmail, e.ContactNumber}
	}
	fields := []string{e.UserEmail}
	for _, ct := range []string{e.FullName, e.LRN, e.ContactNumber} {
		plain, err := r.crypt.Decrypt(ct, e.IV)
		if err != nil {
			continue
		}
		fields = append(fields, plain)
	}
	return fields
}

// Stats tallies the whole collection by status, type and recency window.
func (r *EnrollmentRepository) Stats(ctx context.Context) (*models.EnrollmentStats, error) {
	enrollments, err := r.List(ctx, models.EnrollmentFilter{}, 0)
	if err != nil {
		return nil, err
	}
	stats := &models.EnrollmentStats{
		Total:    len(enrollments),
		ByStatus: make(map[models.EnrollmentStatus]int),
		ByType:   make(map[models.EnrollmentType]int),
	}
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	startOfWeek := startOfDay.AddDate(0, 0, -6)
	for _, e := range enrollments {
		stats.ByStatus[e.Status]++
		stats.ByType[e.Type]++
		if !e.SubmittedAt.Before(startOfDay) {
			stats.TodayCount++
		}
		if !e.SubmittedAt.Before(startOfWeek) {
			stats.WeekCount++
		}
	}
	return stats, nil
}

// RecentActivity buckets submissions per day over the trailing window,
// oldest bucket first. Empty days are included so charts stay continuous.
func (r *EnrollmentRepository) RecentActivity(ctx context.Context, days int) ([]models.ActivityBucket, error) {
	if days <= 0 {
		days = 7
	}
	enrollments, err := r.List(ctx, models.EnrollmentFilter{}, 0)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	buckets := make([]models.ActivityBucket, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		buckets[i] = models.ActivityBucket{Date: date}
		index[date] = i
	}
	for _, e := range enrollments {
		date := e.SubmittedAt.UTC().Format("2006-01-02")
		i, ok := index[date]
		if !ok {
			continue
		}
		buckets[i].Count++
		switch e.Status {
		case models.EnrollmentStatusVerified, models.EnrollmentStatusPrinted:
			buckets[i].Verified++
		case models.EnrollmentStatusRejected:
			buckets[i].Rejected++
		}
	}
	return buckets, nil
}

// Update merges a patch into the record and drops the whole cache.
func (r *EnrollmentRepository) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	patch["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := r.store.Update(ctx, store.CollectionEnrollments, id, patch); err != nil {
		return err
	}
	r.cache.Invalidate()
	return nil
}

// Delete removes the record and drops the whole cache.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, store.CollectionEnrollments, id); err != nil {
		return err
	}
	r.cache.Invalidate()
	return nil
}

// BatchUpdateStatus applies one status to many records atomically.
func (r *EnrollmentRepository) BatchUpdateStatus(ctx context.Context, ids []string, status models.EnrollmentStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ops := make([]store.BatchOp, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, store.UpdateOp(store.CollectionEnrollments, id, map[string]interface{}{
			"status":    status,
			"updatedAt": now,
		}))
	}
	if err := r.store.Batch(ctx, ops); err != nil {
		return err
	}
	r.cache.Invalidate()
	return nil
}

// BatchDelete removes many records atomically.
func (r *EnrollmentRepository) BatchDelete(ctx context.Context, ids []string) error {
	ops := make([]store.BatchOp, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, store.DeleteOp(store.CollectionEnrollments, id))
	}
	if err := r.store.Batch(ctx, ops); err != nil {
		return err
	}
	r.cache.Invalidate()
	return nil
}

// Archive copies the record into archived_enrollments and, in the same
// transaction, either flags the original as archived or deletes it.
func (r *EnrollmentRepository) Archive(ctx context.Context, id string, deleteOriginal bool) (string, error) {
	doc, err := r.store.Get(ctx, store.CollectionEnrollments, id)
	if err != nil {
		return "", err
	}
	enrollment, err := decodeEnrollment(doc)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	archived := *enrollment
	archived.ID = uuid.NewString()
	archived.OriginalID = id
	archived.ArchivedAt = &now
	archived.Status = models.EnrollmentStatusArchived

	ops := []store.BatchOp{store.InsertOp(store.CollectionArchivedEnrollments, archived.ID, &archived)}
	if deleteOriginal {
		ops = append(ops, store.DeleteOp(store.CollectionEnrollments, id))
	} else {
		ops = append(ops, store.UpdateOp(store.CollectionEnrollments, id, map[string]interface{}{
			"status":    models.EnrollmentStatusArchived,
			"updatedAt": now.Format(time.RFC3339Nano),
		}))
	}
	if err := r.store.Batch(ctx, ops); err != nil {
		return "", err
	}
	r.cache.Invalidate()
	return archived.ID, nil
}

// ListArchived returns archived copies for a school year, newest first.
func (r *EnrollmentRepository) ListArchived(ctx context.Context, schoolYear string) ([]*models.Enrollment, error) {
	q := store.Query{
		Collection: store.CollectionArchivedEnrollments,
		OrderBy:    "archivedAt",
		OrderDesc:  true,
	}
	if schoolYear != "" {
		q.Filters = []store.Filter{{Field: "schoolYear", Value: schoolYear}}
	}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return decodeEnrollments(docs)
}

func storeFilters(filter models.EnrollmentFilter) []store.Filter {
	var filters []store.Filter
	if filter.Status != "" {
		filters = append(filters, store.Filter{Field: "status", Value: string(filter.Status)})
	}
	if filter.Type != "" {
		filters = append(filters, store.Filter{Field: "type", Value: string(filter.Type)})
	}
	if filter.SchoolYear != "" {
		filters = append(filters, store.Filter{Field: "schoolYear", Value: filter.SchoolYear})
	}
	if filter.UserID != "" {
		filters = append(filters, store.Filter{Field: "userId", Value: filter.UserID})
	}
	return filters
}

func pageKey(filter models.EnrollmentFilter, page models.PageRequest) string {
	return fmt.Sprintf("s=%s|t=%s|y=%s|u=%s|ob=%s|od=%s|n=%d|c=%s",
		filter.Status, filter.Type, filter.SchoolYear, filter.UserID,
		page.OrderBy, page.OrderDir, page.PageSize, page.Cursor)
}

func decodeEnrollment(doc store.Document) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := doc.Decode(&enrollment); err != nil {
		return nil, err
	}
	enrollment.ID = doc.ID
	return &enrollment, nil
}

func decodeEnrollments(docs []store.Document) ([]*models.Enrollment, error) {
	out := make([]*models.Enrollment, 0, len(docs))
	for _, doc := range docs {
		enrollment, err := decodeEnrollment(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, enrollment)
	}
	return out, nil
}

func sortBySubmittedDesc(enrollments []*models.Enrollment) {
	sort.SliceStable(enrollments, func(i, j int) bool {
		return enrollments[i].SubmittedAt.After(enrollments[j].SubmittedAt)
	})
}
