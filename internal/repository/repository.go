// Package repository defines the document store boundary.
//
// A document store keeps untyped records ("documents") in named tables.
// Identifiers are generated by the caller. There is no query language: List
// returns the whole table and callers filter client-side.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Logical table names shared by every driver.
const (
	TableCollections = "collections"
	TableMemberships = "memberships"
)

// Document is one stored record. Fields holds the caller's attributes; the
// timestamps are store metadata.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode copies Fields into v, a pointer to a struct with json tags.
func (d *Document) Decode(v any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding document %s: %w", d.ID, err)
	}
	return nil
}

// DocumentStore is implemented by the sqlite and appwrite drivers.
//
// Errors carry an apperror kind: ErrNotFound for a missing document,
// ErrConflict for a duplicate id, ErrUnavailable for transport failures.
type DocumentStore interface {
	// List returns every document of table in store order.
	List(ctx context.Context, table string) ([]Document, error)
	Get(ctx context.Context, table, id string) (*Document, error)
	Create(ctx context.Context, table, id string, fields map[string]any) (*Document, error)
	// Update merges fields into the stored document.
	Update(ctx context.Context, table, id string, fields map[string]any) (*Document, error)
	// Increment atomically adds by to the numeric field and returns the
	// updated document. A missing field counts as zero.
	Increment(ctx context.Context, table, id, field string, by int) (*Document, error)
	Delete(ctx context.Context, table, id string) error
	Close() error
}
