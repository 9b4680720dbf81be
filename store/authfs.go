package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	authFilename     = "auth.json"
	databaseFilename = "vault.db"
	configFilename   = "config.yaml"
)

var (
	// ErrNoRecord means no auth.json exists, i.e. nobody has registered.
	ErrNoRecord = errors.New("auth record not found")
	// ErrCorruptRecord means auth.json exists but cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt auth record")
	// ErrStorage marks persistence I/O failures. Callers decide on retries.
	ErrStorage = errors.New("storage failure")
)

// Paths locates vault artifacts on disk.
type Paths struct {
	Dir string
}

// AuthPath resolves the auth record path.
func (p Paths) AuthPath() string {
	return filepath.Join(p.Dir, authFilename)
}

// DatabasePath resolves the SQLite vault path.
func (p Paths) DatabasePath() string {
	return filepath.Join(p.Dir, databaseFilename)
}

// ConfigPath resolves the default config file path inside the vault directory.
func (p Paths) ConfigPath() string {
	return filepath.Join(p.Dir, configFilename)
}

// EnsureDir creates the vault directory with owner-only permissions.
func (p Paths) EnsureDir() error {
	if p.Dir == "" {
		return errors.New("vault directory not specified")
	}
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("%w: create vault directory: %w", ErrStorage, err)
	}
	return nil
}

// LoadAuthRecord reads auth.json from disk.
func LoadAuthRecord(p Paths) (AuthRecord, error) {
	var rec AuthRecord

	data, err := os.ReadFile(p.AuthPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return rec, ErrNoRecord
		}
		return rec, fmt.Errorf("%w: read auth record: %w", ErrStorage, err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if rec.PasswordHash == "" || rec.LoginAttempts < 0 {
		return rec, fmt.Errorf("%w: missing password hash or negative attempt count", ErrCorruptRecord)
	}

	return rec, nil
}

// SaveAuthRecord persists auth.json atomically with restrictive permissions.
func SaveAuthRecord(p Paths, rec AuthRecord) error {
	if err := p.EnsureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode auth record: %w", err)
	}

	tmp, err := os.CreateTemp(p.Dir, "auth-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp auth record: %w", ErrStorage, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write temp auth record: %w", ErrStorage, err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod temp auth record: %w", ErrStorage, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: sync temp auth record: %w", ErrStorage, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp auth record: %w", ErrStorage, err)
	}

	if err := os.Rename(tmpPath, p.AuthPath()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: replace auth record: %w", ErrStorage, err)
	}

	return nil
}

// DeleteAuthRecord removes auth.json. A missing file is not an error.
func DeleteAuthRecord(p Paths) error {
	if err := os.Remove(p.AuthPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove auth record: %w", ErrStorage, err)
	}
	return nil
}

// FileStore keeps the auth record in a directory on disk.
type FileStore struct {
	paths Paths
}

// NewFileStore returns a FileStore rooted at p.
func NewFileStore(p Paths) *FileStore {
	return &FileStore{paths: p}
}

// Load reads the record, returning ErrNoRecord when none exists.
func (s *FileStore) Load() (AuthRecord, error) {
	return LoadAuthRecord(s.paths)
}

// Save replaces the record on disk.
func (s *FileStore) Save(rec AuthRecord) error {
	return SaveAuthRecord(s.paths, rec)
}

// Delete removes the record.
func (s *FileStore) Delete() error {
	return DeleteAuthRecord(s.paths)
}
