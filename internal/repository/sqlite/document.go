package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/movieshelf/internal/apperror"
	"github.com/sakif/movieshelf/internal/repository"
)

var _ repository.DocumentStore = (*DB)(nil)

// Timestamps are stored as text so both drivers read them back identically.
const timeLayout = time.RFC3339Nano

// List returns every document of table in insertion order.
func (db *DB) List(ctx context.Context, table string) ([]repository.Document, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at
		 FROM documents
		 WHERE tbl = ?
		 ORDER BY rowid`,
		table,
	)
	if err != nil {
		return nil, apperror.Unavailable("sqlite: listing "+table, err)
	}
	defer rows.Close()

	docs := make([]repository.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperror.Unavailable("sqlite: scanning "+table, err)
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, apperror.Unavailable("sqlite: iterating "+table, err)
	}

	return docs, nil
}

// Get retrieves one document. sql.ErrNoRows becomes apperror.NotFound.
func (db *DB) Get(ctx context.Context, table, id string) (*repository.Document, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at
		 FROM documents
		 WHERE tbl = ? AND id = ?`,
		table, id,
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(singular(table), id)
		}
		return nil, apperror.Unavailable(fmt.Sprintf("sqlite: getting %s %s", table, id), err)
	}

	return doc, nil
}

// Create inserts a document under a caller-generated id.
func (db *DB) Create(ctx context.Context, table, id string, fields map[string]any) (*repository.Document, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, apperror.ValidationFailed("fields", fmt.Sprintf("fields are not JSON encodable: %v", err))
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO documents (tbl, id, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		table, id, string(data), now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict(singular(table), id)
		}
		return nil, apperror.Unavailable(fmt.Sprintf("sqlite: creating %s %s", table, id), err)
	}

	return db.Get(ctx, table, id)
}

// Update merges fields into the stored JSON with json_patch (RFC 7396).
func (db *DB) Update(ctx context.Context, table, id string, fields map[string]any) (*repository.Document, error) {
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, apperror.ValidationFailed("fields", fmt.Sprintf("fields are not JSON encodable: %v", err))
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE documents
		 SET data = json_patch(data, ?), updated_at = ?
		 WHERE tbl = ? AND id = ?`,
		string(patch), time.Now().UTC().Format(timeLayout), table, id,
	)
	if err := checkAffected(result, err, table, id, "updating"); err != nil {
		return nil, err
	}

	return db.Get(ctx, table, id)
}

// Increment adds by to a numeric field in one UPDATE statement, so
// concurrent increments never lose an update.
func (db *DB) Increment(ctx context.Context, table, id, field string, by int) (*repository.Document, error) {
	if !validField(field) {
		return nil, apperror.ValidationFailed("field", fmt.Sprintf("invalid field name %q", field))
	}
	path := "$." + field

	result, err := db.conn.ExecContext(ctx,
		`UPDATE documents
		 SET data = json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?),
		     updated_at = ?
		 WHERE tbl = ? AND id = ?`,
		path, path, by, time.Now().UTC().Format(timeLayout), table, id,
	)
	if err := checkAffected(result, err, table, id, "incrementing"); err != nil {
		return nil, err
	}

	return db.Get(ctx, table, id)
}

// Delete removes a document.
func (db *DB) Delete(ctx context.Context, table, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE tbl = ? AND id = ?`,
		table, id,
	)
	return checkAffected(result, err, table, id, "deleting")
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*repository.Document, error) {
	var (
		doc                  repository.Document
		data                 string
		createdAt, updatedAt string
	)
	if err := s.Scan(&doc.ID, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &doc.Fields); err != nil {
		return nil, fmt.Errorf("decoding data of %s: %w", doc.ID, err)
	}

	var err error
	if doc.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of %s: %w", doc.ID, err)
	}
	if doc.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of %s: %w", doc.ID, err)
	}

	return &doc, nil
}

// checkAffected maps an Exec outcome: a driver error is Unavailable, zero
// rows affected is NotFound.
func checkAffected(result sql.Result, err error, table, id, verb string) error {
	if err != nil {
		return apperror.Unavailable(fmt.Sprintf("sqlite: %s %s %s", verb, table, id), err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return apperror.Unavailable("sqlite: checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound(singular(table), id)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// validField accepts attribute names usable as a JSON path segment.
func validField(field string) bool {
	if field == "" {
		return false
	}
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// singular turns a table name into a resource name for error messages.
func singular(table string) string {
	return strings.TrimSuffix(table, "s")
}
