package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Hussein-Mazeh/SecureVault/store"
)

// EntryRow represents a credential row retrieved from storage.
type EntryRow struct {
	ID                int64
	Website           string
	Username          string
	EncryptedPassword []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const selectEntryColumns = `SELECT id, website, username, encrypted_password, created_at, updated_at FROM credentials`

// timeLayouts covers CURRENT_TIMESTAMP text and the driver's own time formatting.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (EntryRow, error) {
	var (
		r                  EntryRow
		created, updated string
	)
	if err := s.Scan(&r.ID, &r.Website, &r.Username, &r.EncryptedPassword, &created, &updated); err != nil {
		return r, err
	}
	r.CreatedAt = parseTimestamp(created)
	r.UpdatedAt = parseTimestamp(updated)
	return r, nil
}

// InsertEntry stores a new credential row and returns its database ID.
func InsertEntry(ctx context.Context, q Querier, website, username string, enc []byte) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO credentials (website, username, encrypted_password) VALUES (?, ?, ?)`,
		website, username, enc,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert entry: %w", store.ErrStorage, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: fetch insert id: %w", store.ErrStorage, err)
	}

	return id, nil
}

// UpdateEntry overwrites every column of an existing credential.
// It returns sql.ErrNoRows if no row has that ID.
func UpdateEntry(ctx context.Context, q Querier, id int64, website, username string, enc []byte) error {
	res, err := q.ExecContext(ctx,
		`UPDATE credentials
		    SET website = ?, username = ?, encrypted_password = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`,
		website, username, enc, id,
	)
	if err != nil {
		return fmt.Errorf("%w: update entry: %w", store.ErrStorage, err)
	}
	return requireAffected(res, "update")
}

// UpdateEntryCipher replaces only the ciphertext of a credential, leaving
// updated_at alone since the plaintext did not change.
func UpdateEntryCipher(ctx context.Context, q Querier, id int64, enc []byte) error {
	res, err := q.ExecContext(ctx,
		`UPDATE credentials SET encrypted_password = ? WHERE id = ?`,
		enc, id,
	)
	if err != nil {
		return fmt.Errorf("%w: update entry cipher: %w", store.ErrStorage, err)
	}
	return requireAffected(res, "update cipher")
}

// DeleteEntry deletes a credential by ID.
// It returns sql.ErrNoRows if nothing was deleted.
func DeleteEntry(ctx context.Context, q Querier, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete entry: %w", store.ErrStorage, err)
	}
	return requireAffected(res, "delete")
}

// DeleteAllEntries removes every credential. The AUTOINCREMENT sequence is
// kept, so IDs are never reused.
func DeleteAllEntries(ctx context.Context, q Querier) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM credentials`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete entries: %w", store.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: delete rows affected: %w", store.ErrStorage, err)
	}
	return n, nil
}

// GetEntry returns a single credential row by ID, or sql.ErrNoRows.
func GetEntry(ctx context.Context, q Querier, id int64) (EntryRow, error) {
	r, err := scanEntry(q.QueryRowContext(ctx, selectEntryColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("%w: select entry: %w", store.ErrStorage, err)
	}
	return r, nil
}

// ListEntries returns every credential row ordered by ID.
func ListEntries(ctx context.Context, q Querier) ([]EntryRow, error) {
	rows, err := q.QueryContext(ctx, selectEntryColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: select entries: %w", store.ErrStorage, err)
	}
	defer rows.Close()

	var results []EntryRow
	for rows.Next() {
		r, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan entry row: %w", store.ErrStorage, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate entry rows: %w", store.ErrStorage, err)
	}

	return results, nil
}

// CountEntries returns the number of stored credentials.
func CountEntries(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count entries: %w", store.ErrStorage, err)
	}
	return n, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s rows affected: %w", store.ErrStorage, op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
