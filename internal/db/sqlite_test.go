package db_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/Hussein-Mazeh/SecureVault/internal/db"
	"github.com/Hussein-Mazeh/SecureVault/store"
)

func openTemp(t *testing.T) *db.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "vault.db")

	d, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		db.Close(d)
	})

	if err := db.Migrate(context.Background(), d); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	return d
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	d := openTemp(t)

	info, err := os.Stat(d.Path())
	if err != nil {
		t.Fatalf("expected database file to exist at %q: %v", d.Path(), err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestMigrateCreatesCredentialsTable(t *testing.T) {
	d := openTemp(t)

	var tableName string
	err := d.QueryRowContext(context.Background(),
		`SELECT name FROM sqlite_master WHERE type='table' AND name='credentials'`).Scan(&tableName)
	if err != nil {
		t.Fatalf("query table existence: %v", err)
	}
	if tableName != "credentials" {
		t.Fatalf("expected table name 'credentials', got %q", tableName)
	}

	// Idempotent on an existing schema.
	if err := db.Migrate(context.Background(), d); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
}

func TestEntryLifecycle(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)

	id, err := db.InsertEntry(ctx, d, "example.com", "alice", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first id 1, got %d", id)
	}

	row, err := db.GetEntry(ctx, d, id)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if row.Website != "example.com" || row.Username != "alice" || string(row.EncryptedPassword) != "\x01\x02\x03" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.CreatedAt.IsZero() || row.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be parsed, got %+v", row)
	}

	if err := db.UpdateEntry(ctx, d, id, "example.org", "bob", []byte{9}); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	if err := db.UpdateEntryCipher(ctx, d, id, []byte{7, 7}); err != nil {
		t.Fatalf("UpdateEntryCipher: %v", err)
	}

	rows, err := db.ListEntries(ctx, d)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(rows) != 1 || rows[0].Website != "example.org" || string(rows[0].EncryptedPassword) != "\x07\x07" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := db.DeleteEntry(ctx, d, id); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if _, err := db.GetEntry(ctx, d, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows after delete, got %v", err)
	}
}

func TestMissingRowsReportErrNoRows(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)

	if err := db.UpdateEntry(ctx, d, 42, "a", "b", []byte{1}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("UpdateEntry: expected sql.ErrNoRows, got %v", err)
	}
	if err := db.UpdateEntryCipher(ctx, d, 42, []byte{1}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("UpdateEntryCipher: expected sql.ErrNoRows, got %v", err)
	}
	if err := db.DeleteEntry(ctx, d, 42); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("DeleteEntry: expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteAllEntriesKeepsSequence(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)

	for _, site := range []string{"a.com", "b.com", "c.com"} {
		if _, err := db.InsertEntry(ctx, d, site, "u", []byte{1}); err != nil {
			t.Fatalf("InsertEntry: %v", err)
		}
	}

	n, err := db.DeleteAllEntries(ctx, d)
	if err != nil {
		t.Fatalf("DeleteAllEntries: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", n)
	}

	count, err := db.CountEntries(ctx, d)
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty table, got %d rows", count)
	}

	id, err := db.InsertEntry(ctx, d, "d.com", "u", []byte{1})
	if err != nil {
		t.Fatalf("InsertEntry after purge: %v", err)
	}
	if id != 4 {
		t.Fatalf("expected ids to continue after purge (4), got %d", id)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	d := openTemp(t)
	boom := errors.New("boom")

	err := db.WithTx(ctx, d, func(q db.Querier) error {
		if _, err := db.InsertEntry(ctx, q, "a.com", "u", []byte{1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	count, err := db.CountEntries(ctx, d)
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to leave no rows, got %d", count)
	}
}

func TestStorageFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	handle, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer handle.Close()
	d := db.New(handle, "mock")

	mock.ExpectExec("INSERT INTO credentials").
		WithArgs("a.com", "u", []byte{1}).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectQuery("SELECT id, website").
		WillReturnError(errors.New("database is locked"))

	if _, err := db.InsertEntry(ctx, d, "a.com", "u", []byte{1}); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("InsertEntry: expected ErrStorage, got %v", err)
	}
	if _, err := db.ListEntries(ctx, d); !errors.Is(err, store.ErrStorage) {
		t.Fatalf("ListEntries: expected ErrStorage, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := db.Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
