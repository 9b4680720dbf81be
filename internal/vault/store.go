// Package vault stores website credentials in SQLite with every password
// sealed by the session cipher.
package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/Hussein-Mazeh/SecureVault/internal/db"
	"github.com/Hussein-Mazeh/SecureVault/internal/logging"
	"github.com/Hussein-Mazeh/SecureVault/krypto"
)

var (
	// ErrNotFound means no credential has the requested id.
	ErrNotFound = errors.New("credential not found")
	// ErrInvalidCredential means website, username or password was empty.
	ErrInvalidCredential = errors.New("website, username and password are required")
)

// Credential is a decrypted vault record.
type Credential struct {
	ID        int64
	Website   string
	Username  string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the credential collection. It never persists a plaintext password.
type Store struct {
	mu     sync.Mutex
	db     *db.DB
	cipher *krypto.Cipher
	log    logging.Logger
}

// NewStore binds the database and the session cipher.
func NewStore(d *db.DB, cipher *krypto.Cipher, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{db: d, cipher: cipher, log: log.With("component", "vault")}
}

func validate(website, username, password string) error {
	if strings.TrimSpace(website) == "" || strings.TrimSpace(username) == "" || password == "" {
		return ErrInvalidCredential
	}
	return nil
}

// Add encrypts password and inserts a new credential.
func (s *Store) Add(ctx context.Context, website, username, password string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cipher.Ready() {
		return Credential{}, krypto.ErrEncryptionNotInitialized
	}
	if err := validate(website, username, password); err != nil {
		return Credential{}, err
	}

	enc, err := s.cipher.Encrypt([]byte(password))
	if err != nil {
		return Credential{}, fmt.Errorf("encrypt password: %w", err)
	}

	id, err := db.InsertEntry(ctx, s.db, website, username, enc)
	if err != nil {
		return Credential{}, err
	}
	s.log.Info(ctx, "credential added", "id", id)

	row, err := db.GetEntry(ctx, s.db, id)
	if err != nil {
		return Credential{}, fmt.Errorf("reload credential %d: %w", id, err)
	}
	return Credential{
		ID:        id,
		Website:   row.Website,
		Username:  row.Username,
		Password:  password,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// List returns every readable credential ordered by id. Rows that fail to
// decrypt are logged and skipped.
func (s *Store) List(ctx context.Context) ([]Credential, error) {
	return s.filter(ctx, nil)
}

// Search returns credentials whose website or username contains query,
// ignoring case. An empty query matches everything.
func (s *Store) Search(ctx context.Context, query string) ([]Credential, error) {
	if query == "" {
		return s.List(ctx)
	}
	fold := cases.Fold()
	needle := fold.String(query)
	return s.filter(ctx, func(r db.EntryRow) bool {
		return strings.Contains(fold.String(r.Website), needle) ||
			strings.Contains(fold.String(r.Username), needle)
	})
}

func (s *Store) filter(ctx context.Context, match func(db.EntryRow) bool) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cipher.Ready() {
		return nil, krypto.ErrEncryptionNotInitialized
	}

	rows, err := db.ListEntries(ctx, s.db)
	if err != nil {
		return nil, err
	}

	out := make([]Credential, 0, len(rows))
	for _, r := range rows {
		if match != nil && !match(r) {
			continue
		}
		c, err := s.open(r)
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable credential", "id", r.ID, "error", err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Get returns one credential. Unlike List, a decryption failure is an error.
func (s *Store) Get(ctx context.Context, id int64) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cipher.Ready() {
		return Credential{}, krypto.ErrEncryptionNotInitialized
	}

	row, err := db.GetEntry(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Credential{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return Credential{}, err
	}
	return s.open(row)
}

// Update replaces all fields of an existing credential.
func (s *Store) Update(ctx context.Context, id int64, website, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cipher.Ready() {
		return krypto.ErrEncryptionNotInitialized
	}
	if err := validate(website, username, password); err != nil {
		return err
	}

	enc, err := s.cipher.Encrypt([]byte(password))
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}

	if err := db.UpdateEntry(ctx, s.db, id, website, username, enc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return err
	}
	s.log.Info(ctx, "credential updated", "id", id)
	return nil
}

// Delete removes a credential. Deleting a missing id is ErrNotFound and
// leaves the collection unchanged.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cipher.Ready() {
		return krypto.ErrEncryptionNotInitialized
	}

	if err := db.DeleteEntry(ctx, s.db, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return err
	}
	s.log.Info(ctx, "credential deleted", "id", id)
	return nil
}

// Purge irrecoverably deletes every credential. It needs no key.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := db.DeleteAllEntries(ctx, s.db)
	if err != nil {
		return err
	}
	s.log.Warn(ctx, "vault purged", "deleted", n)
	return nil
}

// Rekey re-encrypts every credential from one cipher to another in a single
// transaction, then calls commit before the transaction commits. If commit
// fails nothing is changed.
func (s *Store) Rekey(ctx context.Context, from, to *krypto.Cipher, commit func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !from.Ready() || !to.Ready() {
		return krypto.ErrEncryptionNotInitialized
	}

	var rekeyed, skipped int
	err := db.WithTx(ctx, s.db, func(q db.Querier) error {
		rows, err := db.ListEntries(ctx, q)
		if err != nil {
			return err
		}
		for _, r := range rows {
			pt, err := from.Decrypt(r.EncryptedPassword)
			if err != nil {
				// Already unreadable under the old key; leave it as is.
				s.log.Warn(ctx, "rekey skipping unreadable credential", "id", r.ID, "error", err)
				skipped++
				continue
			}
			enc, err := to.Encrypt(pt)
			wipe(pt)
			if err != nil {
				return fmt.Errorf("re-encrypt credential %d: %w", r.ID, err)
			}
			if err := db.UpdateEntryCipher(ctx, q, r.ID, enc); err != nil {
				return fmt.Errorf("store credential %d: %w", r.ID, err)
			}
			rekeyed++
		}
		if commit != nil {
			return commit()
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "vault rekeyed", "rekeyed", rekeyed, "skipped", skipped)
	return nil
}

// Count returns the number of stored rows, readable or not.
func (s *Store) Count(ctx context.Context) (int, error) {
	return db.CountEntries(ctx, s.db)
}

func (s *Store) open(r db.EntryRow) (Credential, error) {
	pt, err := s.cipher.Decrypt(r.EncryptedPassword)
	if err != nil {
		return Credential{}, fmt.Errorf("decrypt credential %d: %w", r.ID, err)
	}
	defer wipe(pt)
	return Credential{
		ID:        r.ID,
		Website:   r.Website,
		Username:  r.Username,
		Password:  string(pt),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
