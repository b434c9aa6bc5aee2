package store

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

// CompositeIndex declares that a collection can be filtered on FilterFields
// while ordering on OrderField. Each declaration mirrors an expression index
// in migrations/schema.sql.
type CompositeIndex struct {
	Collection   string
	FilterFields []string
	OrderField   string
}

// IndexManifest is the set of declared composite indexes. Queries that filter
// on one field and order on another are refused unless declared here, so the
// failure shows up in development rather than as a slow scan in production.
type IndexManifest struct {
	entries map[string]bool
}

// NewIndexManifest builds a manifest from explicit declarations.
func NewIndexManifest(indexes ...CompositeIndex) *IndexManifest {
	m := &IndexManifest{entries: make(map[string]bool)}
	for _, idx := range indexes {
		m.entries[indexKey(idx.Collection, idx.FilterFields, idx.OrderField)] = true
	}
	return m
}

// DefaultIndexManifest declares the combined queries the repositories run.
func DefaultIndexManifest() *IndexManifest {
	return NewIndexManifest(
		CompositeIndex{CollectionEnrollments, []string{"status"}, "submittedAt"},
		CompositeIndex{CollectionEnrollments, []string{"type"}, "submittedAt"},
		CompositeIndex{CollectionEnrollments, []string{"schoolYear"}, "submittedAt"},
		CompositeIndex{CollectionEnrollments, []string{"status", "type"}, "submittedAt"},
		CompositeIndex{CollectionEnrollments, []string{"status", "schoolYear"}, "submittedAt"},
		CompositeIndex{CollectionEnrollments, []string{"type", "schoolYear"}, "submittedAt"},
		CompositeIndex{CollectionEnrollments, []string{"status", "type", "schoolYear"}, "submittedAt"},
		CompositeIndex{CollectionEnrollments, []string{"userId"}, "submittedAt"},
		CompositeIndex{CollectionArchivedEnrollments, []string{"schoolYear"}, "archivedAt"},
		CompositeIndex{CollectionNews, []string{"isPublished"}, "publishedAt"},
	)
}

// Check returns ErrIndexRequired when the query combines filters with an
// order on a different field and no matching index is declared. Unfiltered
// queries and queries ordered by a filtered field never need an index.
func (m *IndexManifest) Check(q Query) error {
	if len(q.Filters) == 0 || q.OrderBy == "" {
		return nil
	}
	fields := make([]string, 0, len(q.Filters))
	orderCovered := false
	for _, f := range q.Filters {
		fields = append(fields, f.Field)
		if f.Field == q.OrderBy {
			orderCovered = true
		}
	}
	if orderCovered && len(q.Filters) == 1 {
		return nil
	}
	if m.entries[indexKey(q.Collection, fields, q.OrderBy)] {
		return nil
	}
	return fmt.Errorf("%s filter(%s) order(%s): %w",
		q.Collection, strings.Join(fields, ","), q.OrderBy, apperrors.ErrIndexRequired)
}

func indexKey(collection string, filterFields []string, orderField string) string {
	sorted := make([]string, len(filterFields))
	copy(sorted, filterFields)
	sort.Strings(sorted)
	return collection + "|" + strings.Join(sorted, ",") + "|" + orderField
}
