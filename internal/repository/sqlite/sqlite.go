// Package sqlite implements repository.DocumentStore on top of SQLite.
//
// A single `documents` table holds every logical table, keyed by (tbl, id).
// Fields are stored as a JSON object in the data column and manipulated with
// SQLite's JSON functions, so merges and counter increments are single
// statements.
//
// DRIVERS:
//   - modernc.org/sqlite (pure Go) for local files and ":memory:"
//   - github.com/tursodatabase/libsql-client-go for Turso, selected when the
//     DSN is a libsql://, wss:// or https:// URL
//
// Both register themselves with database/sql through blank imports.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.DocumentStore.
type DB struct {
	conn   *sql.DB
	driver string
}

// driverFor picks the database/sql driver name for a DSN.
func driverFor(dsn string) string {
	for _, prefix := range []string{"libsql://", "wss://", "https://", "http://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "libsql"
		}
	}
	return "sqlite"
}

// New opens the database and runs migrations.
//
// dsn examples:
//   - "data/movieshelf.db"           → local file
//   - ":memory:"                     → in-memory database (tests)
//   - "libsql://db-org.turso.io?authToken=..." → Turso
func New(dsn string) (*DB, error) {
	driver := driverFor(dsn)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if driver == "sqlite" {
		// One connection: PRAGMAs are per connection, and every ":memory:"
		// connection would otherwise be its own empty database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if driver == "sqlite" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
		}
	}

	db := &DB{conn: conn, driver: driver}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the documents table. CREATE ... IF NOT EXISTS keeps it
// idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			tbl        TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (tbl, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}

	_, err = db.conn.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_tbl ON documents(tbl)`)
	if err != nil {
		return fmt.Errorf("creating documents tbl index: %w", err)
	}

	return nil
}
