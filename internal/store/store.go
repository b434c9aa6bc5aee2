package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

// Collection names. Every query is validated against this set before any SQL
// is built.
const (
	CollectionEnrollments         = "enrollments"
	CollectionArchivedEnrollments = "archived_enrollments"
	CollectionTeachers            = "teachers"
	CollectionNews                = "news"
	CollectionSettings            = "settings"
	CollectionUsers               = "users"
	CollectionAuditLogs           = "audit_logs"
)

var collections = map[string]bool{
	CollectionEnrollments:         true,
	CollectionArchivedEnrollments: true,
	CollectionTeachers:            true,
	CollectionNews:                true,
	CollectionSettings:            true,
	CollectionUsers:               true,
	CollectionAuditLogs:           true,
}

// Document is a raw record returned by reads and queries.
type Document struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// Decode unmarshals the document body into out and injects the id so callers
// do not have to carry it separately.
func (d Document) Decode(out interface{}) error {
	if err := json.Unmarshal(d.Data, out); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Filter is a single equality or membership predicate on a top-level field.
type Filter struct {
	Field string
	Op    string // "==" or "in"
	Value interface{}
}

// Query describes a filtered, ordered, limited read over one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	OrderDesc  bool
	Limit      int
	Cursor     string
}

// Store is a JSONB document store over Postgres. Each collection is a table
// with an id column and a jsonb body.
type Store struct {
	db      *sqlx.DB
	indexes *IndexManifest
}

// New constructs a Store using the default index manifest.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, indexes: DefaultIndexManifest()}
}

// NewWithIndexes constructs a Store with an explicit manifest. Used by tests.
func NewWithIndexes(db *sqlx.DB, indexes *IndexManifest) *Store {
	return &Store{db: db, indexes: indexes}
}

// DB exposes the underlying handle for the change listener, which needs the
// same connection settings.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func validCollection(name string) error {
	if !collections[name] {
		return fmt.Errorf("unknown collection %q", name)
	}
	return nil
}

// Get reads one document by id.
func (s *Store) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validCollection(collection); err != nil {
		return Document{}, err
	}
	var doc Document
	query := fmt.Sprintf("SELECT id, doc, updated_at FROM %s WHERE id = $1", collection)
	row := s.db.QueryRowxContext(ctx, query, id)
	if err := row.Scan(&doc.ID, &doc.Data, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Document{}, apperrors.ErrNotFound
		}
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Insert creates a new document. Existing ids are a conflict.
func (s *Store) Insert(ctx context.Context, collection, id string, body interface{}) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	query := fmt.Sprintf("INSERT INTO %s (id, doc, updated_at) VALUES ($1, $2, NOW())", collection)
	if _, err := s.db.ExecContext(ctx, query, id, raw); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Set writes a document, replacing any existing body. Used for singleton
// documents such as settings.
func (s *Store) Set(ctx context.Context, collection, id string, body interface{}) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, doc, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`, collection)
	if _, err := s.db.ExecContext(ctx, query, id, raw); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges the patch into the existing document body. Keys in the patch
// overwrite top-level keys in the stored body; absent keys are untouched.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch %s/%s: %w", collection, id, err)
	}
	query := fmt.Sprintf("UPDATE %s SET doc = doc || $2, updated_at = NOW() WHERE id = $1", collection)
	res, err := s.db.ExecContext(ctx, query, id, raw)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", collection)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query runs a filtered read. Combining a filter with an order on a different
// field requires a declared composite index; without one the query fails with
// ErrIndexRequired so callers can take their degraded path.
func (s *Store) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := validCollection(q.Collection); err != nil {
		return nil, err
	}
	if err := s.indexes.Check(q); err != nil {
		return nil, err
	}

	sqlText, args, err := buildQuerySQL(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Count returns the number of documents matching the query's filters. Order,
// limit and cursor are ignored.
func (s *Store) Count(ctx context.Context, q Query) (int, error) {
	if err := validCollection(q.Collection); err != nil {
		return 0, err
	}
	where, args, err := buildWhere(q.Filters, 1)
	if err != nil {
		return 0, err
	}
	sqlText := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.Collection, where)
	var count int
	if err := s.db.GetContext(ctx, &count, sqlText, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Collection, err)
	}
	return count, nil
}

// NextCursor encodes the resume point after the given document for the query's
// order field.
func NextCursor(q Query, last Document) (string, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(last.Data, &body); err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	orderField := q.OrderBy
	if orderField == "" {
		orderField = "createdAt"
	}
	value := ""
	if v, ok := body[orderField]; ok {
		value = fmt.Sprintf("%v", v)
	}
	cur := cursor{Value: value, ID: last.ID}
	raw, err := json.Marshal(cur)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

type cursor struct {
	Value string `json:"v"`
	ID    string `json:"id"`
}

func decodeCursor(raw string) (cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return cursor{}, apperrors.Clone(apperrors.ErrValidation, "invalid pagination cursor")
	}
	var cur cursor
	if err := json.Unmarshal(data, &cur); err != nil {
		return cursor{}, apperrors.Clone(apperrors.ErrValidation, "invalid pagination cursor")
	}
	return cur, nil
}

func buildQuerySQL(q Query) (string, []interface{}, error) {
	where, args, err := buildWhere(q.Filters, 1)
	if err != nil {
		return "", nil, err
	}

	orderField := q.OrderBy
	if orderField == "" {
		orderField = "createdAt"
	}
	if err := validField(orderField); err != nil {
		return "", nil, err
	}
	dir := "ASC"
	cmp := ">"
	if q.OrderDesc {
		dir = "DESC"
		cmp = "<"
	}

	conds := ""
	if q.Cursor != "" {
		cur, err := decodeCursor(q.Cursor)
		if err != nil {
			return "", nil, err
		}
		// Tuple comparison keeps pagination stable when order values tie.
		conds = fmt.Sprintf(" AND (doc->>'%s', id) %s ($%d, $%d)", orderField, cmp, len(args)+1, len(args)+2)
		args = append(args, cur.Value, cur.ID)
	}
	if where == "" && conds != "" {
		where = " WHERE" + strings.TrimPrefix(conds, " AND")
		conds = ""
	}

	sqlText := fmt.Sprintf("SELECT id, doc, updated_at FROM %s%s%s ORDER BY doc->>'%s' %s, id %s",
		q.Collection, where, conds, orderField, dir, dir)
	if q.Limit > 0 {
		sqlText = fmt.Sprintf("%s LIMIT %d", sqlText, q.Limit)
	}
	return sqlText, args, nil
}

func buildWhere(filters []Filter, argStart int) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	var conds []string
	var args []interface{}
	for _, f := range filters {
		if err := validField(f.Field); err != nil {
			return "", nil, err
		}
		switch f.Op {
		case "==", "":
			conds = append(conds, fmt.Sprintf("doc->>'%s' = $%d", f.Field, argStart+len(args)))
			args = append(args, fmt.Sprintf("%v", f.Value))
		case "in":
			values, ok := f.Value.([]string)
			if !ok || len(values) == 0 {
				return "", nil, fmt.Errorf("filter %s: in requires a non-empty string slice", f.Field)
			}
			conds = append(conds, fmt.Sprintf("doc->>'%s' = ANY($%d)", f.Field, argStart+len(args)))
			args = append(args, pq.Array(values))
		default:
			return "", nil, fmt.Errorf("filter %s: unsupported op %q", f.Field, f.Op)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// validField rejects field names that could escape the JSON accessor quoting.
func validField(field string) error {
	if field == "" {
		return fmt.Errorf("empty field name")
	}
	for _, r := range field {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("invalid field name %q", field)
		}
	}
	return nil
}
