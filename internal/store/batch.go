package store

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
)

// BatchOp is one write inside an atomic batch.
type BatchOp struct {
	kind       opKind
	collection string
	id         string
	body       interface{}
	patch      map[string]interface{}
}

// InsertOp creates a document inside a batch.
func InsertOp(collection, id string, body interface{}) BatchOp {
	return BatchOp{kind: opInsert, collection: collection, id: id, body: body}
}

// UpdateOp merges a patch inside a batch. A missing document aborts the batch.
func UpdateOp(collection, id string, patch map[string]interface{}) BatchOp {
	return BatchOp{kind: opUpdate, collection: collection, id: id, patch: patch}
}

// DeleteOp removes a document inside a batch.
func DeleteOp(collection, id string) BatchOp {
	return BatchOp{kind: opDelete, collection: collection, id: id}
}

// Batch applies every op in one transaction. Either all writes land or none
// do.
func (s *Store) Batch(ctx context.Context, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batch begin: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		if err := validCollection(op.collection); err != nil {
			return err
		}
		switch op.kind {
		case opInsert:
			raw, err := json.Marshal(op.body)
			if err != nil {
				return fmt.Errorf("batch encode %s/%s: %w", op.collection, op.id, err)
			}
			query := fmt.Sprintf("INSERT INTO %s (id, doc, updated_at) VALUES ($1, $2, NOW())", op.collection)
			if _, err := tx.ExecContext(ctx, query, op.id, raw); err != nil {
				return fmt.Errorf("batch insert %s/%s: %w", op.collection, op.id, err)
			}
		case opUpdate:
			raw, err := json.Marshal(op.patch)
			if err != nil {
				return fmt.Errorf("batch encode %s/%s: %w", op.collection, op.id, err)
			}
			query := fmt.Sprintf("UPDATE %s SET doc = doc || $2, updated_at = NOW() WHERE id = $1", op.collection)
			res, err := tx.ExecContext(ctx, query, op.id, raw)
			if err != nil {
				return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, err)
			}
			if affected == 0 {
				return fmt.Errorf("batch update %s/%s: %w", op.collection, op.id, apperrors.ErrNotFound)
			}
		case opDelete:
			query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", op.collection)
			if _, err := tx.ExecContext(ctx, query, op.id); err != nil {
				return fmt.Errorf("batch delete %s/%s: %w", op.collection, op.id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batch commit: %w", err)
	}
	return nil
}
