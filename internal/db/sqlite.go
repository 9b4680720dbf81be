package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Hussein-Mazeh/SecureVault/store"
)

// DB wraps the SQLite handle and associated metadata.
type DB struct {
	sql  *sql.DB
	path string
}

// Querier is satisfied by *DB and *sql.Tx, so entry helpers run inside or
// outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open initialises a SQLite database at the given path and returns a DB wrapper.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %w", store.ErrStorage, err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %w", store.ErrStorage, err)
	}
	// One writer; keeps the single-user model simple and avoids SQLITE_BUSY.
	handle.SetMaxOpenConns(1)

	if err := handle.Ping(); err != nil {
		handle.Close()
		return nil, fmt.Errorf("%w: ping sqlite database: %w", store.ErrStorage, err)
	}

	if err := EnsurePerm0600(path); err != nil {
		handle.Close()
		return nil, err
	}

	return &DB{sql: handle, path: path}, nil
}

// New wraps an already opened handle. Used with alternative drivers and mocks.
func New(handle *sql.DB, path string) *DB {
	return &DB{sql: handle, path: path}
}

// Close releases the database resources.
func Close(d *DB) error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Path returns the database file location.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.sql.ExecContext(ctx, query, args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.sql.QueryContext(ctx, query, args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.sql.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise.
func WithTx(ctx context.Context, d *DB, fn func(q Querier) error) error {
	if d == nil || d.sql == nil {
		return fmt.Errorf("database handle is nil")
	}

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", store.ErrStorage, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", store.ErrStorage, err)
	}
	return nil
}

// EnsurePerm0600 attempts to set the database file permissions to 0600 on Unix systems(the owner permission).
// Only the current owner of the sqlite db is allowed to read and write (ensured if Unix system)
func EnsurePerm0600(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: chmod database: %w", store.ErrStorage, err)
	}
	return nil
}

const createCredentialsTable = `
CREATE TABLE IF NOT EXISTS credentials (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	website            TEXT     NOT NULL,
	username           TEXT     NOT NULL,
	encrypted_password BLOB     NOT NULL,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_credentials_website ON credentials(website);
`

// Migrate ensures the credentials table (and index) exist.
func Migrate(ctx context.Context, d *DB) error {
	if d == nil || d.sql == nil {
		return fmt.Errorf("database handle is nil")
	}
	if _, err := d.sql.ExecContext(ctx, createCredentialsTable); err != nil {
		return fmt.Errorf("%w: migrate schema: %w", store.ErrStorage, err)
	}
	// SQLite may create the file lazily on first write.
	return EnsurePerm0600(d.path)
}
