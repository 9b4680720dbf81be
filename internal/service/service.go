// Package service wires configuration, storage, the vault store and the
// authentication session into one handle for the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Hussein-Mazeh/SecureVault/auth"
	"github.com/Hussein-Mazeh/SecureVault/internal/config"
	"github.com/Hussein-Mazeh/SecureVault/internal/db"
	"github.com/Hussein-Mazeh/SecureVault/internal/logging"
	"github.com/Hussein-Mazeh/SecureVault/internal/vault"
	"github.com/Hussein-Mazeh/SecureVault/krypto"
	"github.com/Hussein-Mazeh/SecureVault/store"
)

// Service exposes the vault operations for the CLI.
type Service struct {
	cfg     config.Config
	paths   store.Paths
	log     logging.Logger
	db      *db.DB
	cipher  *krypto.Cipher
	vault   *vault.Store
	session *auth.Session
}

// Open binds a service to cfg.Dir, creating the directory and database
// schema if needed. The caller must Close it.
func Open(ctx context.Context, cfg config.Config, log logging.Logger) (*Service, error) {
	if log == nil {
		log = logging.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	paths := store.Paths{Dir: cfg.Dir}
	if err := paths.EnsureDir(); err != nil {
		return nil, err
	}

	handle, err := db.Open(paths.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", paths.DatabasePath(), err)
	}
	if err := db.Migrate(ctx, handle); err != nil {
		db.Close(handle)
		return nil, err
	}

	cipher := krypto.NewCipher(cfg.Suite())
	contents := vault.NewStore(handle, cipher, log)
	session := auth.NewSession(store.NewFileStore(paths),
		auth.WithCipher(cipher),
		auth.WithVaultContents(contents),
		auth.WithMaxAttempts(cfg.MaxAttempts),
		auth.WithKDF(cfg.KDF),
		auth.WithLogger(log),
	)

	log.Debug(ctx, "service opened", "dir", cfg.Dir, "kdf", cfg.KDF, "cipher", cfg.Cipher)
	return &Service{
		cfg:     cfg,
		paths:   paths,
		log:     log,
		db:      handle,
		cipher:  cipher,
		vault:   contents,
		session: session,
	}, nil
}

// Close wipes the key and closes the database.
func (s *Service) Close() error {
	s.cipher.Destroy()
	return db.Close(s.db)
}

// Auth returns the authentication session.
func (s *Service) Auth() *auth.Session {
	return s.session
}

// Vault returns the credential store. Its operations need a logged-in session.
func (s *Service) Vault() *vault.Store {
	return s.vault
}

func (s *Service) Paths() store.Paths {
	return s.paths
}

func (s *Service) Config() config.Config {
	return s.cfg
}

// IsUnlocked reports whether a derived key is held in memory.
func (s *Service) IsUnlocked() bool {
	return s.cipher.Ready()
}

// Provision prepares a vault directory: it creates the directory, writes
// cfg as config.yaml unless one exists and creates the database schema.
// It returns true when a config file was written.
func Provision(ctx context.Context, cfg config.Config, log logging.Logger) (bool, error) {
	svc, err := Open(ctx, cfg, log)
	if err != nil {
		return false, err
	}
	defer svc.Close()

	path := svc.paths.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: stat config: %w", store.ErrStorage, err)
	}

	if err := config.Write(path, cfg); err != nil {
		return false, err
	}
	return true, nil
}
