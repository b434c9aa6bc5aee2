package repository

import (
	"sync"
	"time"

	"github.com/snchs-registrar/enrollment-api/internal/models"
)

// Clock supplies the current time. Tests substitute a fake to drive
// expiration deterministically.
type Clock func() time.Time

// CachedPage is a materialized page result stored alongside its metadata so a
// hit can be served without touching the store.
type CachedPage struct {
	Items []*models.Enrollment
	Page  models.PageInfo
	Total int
}

type idEntry struct {
	value     *models.Enrollment
	expiresAt time.Time
}

type pageEntry struct {
	value     CachedPage
	expiresAt time.Time
}

// EnrollmentCache is an in-process TTL cache over enrollment reads. Entries
// expire lazily on access; nothing evicts in the background.
type EnrollmentCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   Clock
	byID  map[string]idEntry
	pages map[string]pageEntry
}

// NewEnrollmentCache constructs the cache. A nil clock uses time.Now.
func NewEnrollmentCache(ttl time.Duration, now Clock) *EnrollmentCache {
	if now == nil {
		now = time.Now
	}
	return &EnrollmentCache{
		ttl:   ttl,
		now:   now,
		byID:  make(map[string]idEntry),
		pages: make(map[string]pageEntry),
	}
}

// GetByID returns the cached record, or false on miss or expiry.
func (c *EnrollmentCache) GetByID(id string) (*models.Enrollment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.byID, id)
		return nil, false
	}
	return entry.value, true
}

// SetByID stores a record under its id.
func (c *EnrollmentCache) SetByID(id string, value *models.Enrollment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[id] = idEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// GetPage returns a cached page result, or false on miss or expiry.
func (c *EnrollmentCache) GetPage(key string) (CachedPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.pages[key]
	if !ok {
		return CachedPage{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.pages, key)
		return CachedPage{}, false
	}
	return entry.value, true
}

// SetPage stores a page result under its canonical key.
func (c *EnrollmentCache) SetPage(key string, value CachedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = pageEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops everything. Used after updates, deletes, batches and
// archives, where both page membership and record bodies may have changed.
func (c *EnrollmentCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[string]idEntry)
	c.pages = make(map[string]pageEntry)
}

// InvalidatePages drops only page results. Used after creates, which change
// page membership but cannot stale an existing per-id entry.
func (c *EnrollmentCache) InvalidatePages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = make(map[string]pageEntry)
}

// Len reports live entry counts without pruning expired ones.
func (c *EnrollmentCache) Len() (ids, pages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID), len(c.pages)
}
