// Package auth owns the master-password workflow: registration, login with
// lockout, unlock, password change and reset.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Hussein-Mazeh/SecureVault/internal/logging"
	"github.com/Hussein-Mazeh/SecureVault/krypto"
	"github.com/Hussein-Mazeh/SecureVault/store"
)

// DefaultMaxAttempts is the number of failed logins that locks the account.
const DefaultMaxAttempts = 3

// RecordStore persists the single auth record.
type RecordStore interface {
	// Load returns store.ErrNoRecord when nobody has registered.
	Load() (store.AuthRecord, error)
	Save(rec store.AuthRecord) error
}

// VaultContents is the credential collection as seen by the session.
type VaultContents interface {
	// Purge deletes every credential.
	Purge(ctx context.Context) error
	// Rekey re-encrypts every credential from one cipher to the other and
	// calls commit before making the change durable.
	Rekey(ctx context.Context, from, to *krypto.Cipher, commit func() error) error
}

// LoginResult reports the outcome of a login attempt that reached password
// verification.
type LoginResult struct {
	OK           bool
	AttemptsLeft int
	Locked       bool
}

// Status is a read-only snapshot for presentation.
type Status struct {
	Registered    bool
	Locked        bool
	LoginAttempts int
	MaxAttempts   int
	KDF           string
	LoggedIn      bool
}

// Session is the explicit authentication state of the vault. All methods
// are safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	records     RecordStore
	vault       VaultContents
	cipher      *krypto.Cipher
	maxAttempts int
	kdf         string
	log         logging.Logger
	now         func() time.Time
}

// Option customises a Session.
type Option func(*Session)

// WithMaxAttempts sets the lockout threshold. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Session) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithKDF selects the scheme used for new and changed passwords.
func WithKDF(name string) Option {
	return func(s *Session) { s.kdf = name }
}

// WithCipher shares an existing cipher, typically the one the vault store uses.
func WithCipher(c *krypto.Cipher) Option {
	return func(s *Session) { s.cipher = c }
}

// WithSuite picks the AEAD suite when the session creates its own cipher.
func WithSuite(suite krypto.Suite) Option {
	return func(s *Session) {
		if s.cipher == nil {
			s.cipher = krypto.NewCipher(suite)
		}
	}
}

// WithVaultContents wires the collection purged on reset and re-encrypted on
// password change.
func WithVaultContents(v VaultContents) Option {
	return func(s *Session) { s.vault = v }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession builds a Session over records.
func NewSession(records RecordStore, opts ...Option) *Session {
	s := &Session{
		records:     records,
		maxAttempts: DefaultMaxAttempts,
		kdf:         krypto.KDFSHA256,
		log:         logging.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cipher == nil {
		s.cipher = krypto.NewCipher(krypto.SuiteAESGCM)
	}
	s.log = s.log.With("component", "auth")
	return s
}

// Cipher returns the session cipher. It is Ready only while logged in.
func (s *Session) Cipher() *krypto.Cipher {
	return s.cipher
}

// load reloads the record so changes made by another process are seen.
func (s *Session) load() (store.AuthRecord, bool, error) {
	rec, err := s.records.Load()
	if err != nil {
		if errors.Is(err, store.ErrNoRecord) {
			return rec, false, nil
		}
		return rec, false, fmt.Errorf("load auth record: %w", err)
	}
	return rec, true, nil
}

func (s *Session) newRecord(master string) (store.AuthRecord, krypto.KDFParams, error) {
	params, err := krypto.NewKDFParams(s.kdf)
	if err != nil {
		return store.AuthRecord{}, params, err
	}
	hash, err := krypto.HashPassword(master, params)
	if err != nil {
		return store.AuthRecord{}, params, fmt.Errorf("hash master password: %w", err)
	}
	now := s.now().UTC()
	return store.AuthRecord{
		Version:      store.RecordVersion,
		PasswordHash: hash,
		KDF:          store.NewKDFConfig(params),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, params, nil
}

// Register creates the single user. The session is logged in afterwards.
func (s *Session) Register(ctx context.Context, master string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists, err := s.load()
	if err != nil {
		return err
	}
	if exists {
		return ErrUserAlreadyExists
	}
	if err := ValidateMasterPassword(master); err != nil {
		return err
	}

	rec, params, err := s.newRecord(master)
	if err != nil {
		return err
	}
	if err := s.records.Save(rec); err != nil {
		return fmt.Errorf("save auth record: %w", err)
	}
	if err := s.cipher.Initialize(master, params); err != nil {
		return fmt.Errorf("initialize cipher: %w", err)
	}

	s.log.Info(ctx, "user registered", "kdf", rec.KDF.Name)
	return nil
}

// Login verifies master. A wrong password is reported in the result, not as
// an error, and counts towards the lockout.
func (s *Session) Login(ctx context.Context, master string) (LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists, err := s.load()
	if err != nil {
		return LoginResult{}, err
	}
	if !exists {
		return LoginResult{}, ErrNoUserRegistered
	}
	if rec.Locked {
		return LoginResult{Locked: true}, ErrAccountLocked
	}

	params, err := rec.KDF.Params()
	if err != nil {
		return LoginResult{}, err
	}

	if krypto.VerifyPassword(master, rec.PasswordHash, params) {
		rec.LoginAttempts = 0
		rec.UpdatedAt = s.now().UTC()
		if err := s.records.Save(rec); err != nil {
			return LoginResult{}, fmt.Errorf("save auth record: %w", err)
		}
		if err := s.cipher.Initialize(master, params); err != nil {
			return LoginResult{}, fmt.Errorf("initialize cipher: %w", err)
		}
		s.log.Info(ctx, "login succeeded")
		return LoginResult{OK: true, AttemptsLeft: s.maxAttempts}, nil
	}

	rec.LoginAttempts++
	if rec.LoginAttempts >= s.maxAttempts {
		rec.Locked = true
	}
	rec.UpdatedAt = s.now().UTC()
	if err := s.records.Save(rec); err != nil {
		return LoginResult{}, fmt.Errorf("save auth record: %w", err)
	}

	left := s.maxAttempts - rec.LoginAttempts
	if left < 0 {
		left = 0
	}
	s.log.Warn(ctx, "login failed", "attempts", rec.LoginAttempts, "locked", rec.Locked)
	return LoginResult{AttemptsLeft: left, Locked: rec.Locked}, nil
}

// Unlock clears a lockout when master verifies. It returns false without
// touching the record if nobody is registered, the account is not locked or
// the password is wrong. Unlock attempts are not limited.
func (s *Session) Unlock(ctx context.Context, master string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists, err := s.load()
	if err != nil {
		return false, err
	}
	if !exists || !rec.Locked {
		return false, nil
	}

	params, err := rec.KDF.Params()
	if err != nil {
		return false, err
	}
	if !krypto.VerifyPassword(master, rec.PasswordHash, params) {
		s.log.Warn(ctx, "unlock failed")
		return false, nil
	}

	rec.Locked = false
	rec.LoginAttempts = 0
	rec.UpdatedAt = s.now().UTC()
	if err := s.records.Save(rec); err != nil {
		return false, fmt.Errorf("save auth record: %w", err)
	}

	s.log.Info(ctx, "account unlocked")
	return true, nil
}

// ChangeMasterPassword replaces the master password. Stored credentials are
// re-encrypted under the new key in one transaction and the new record is
// saved just before it commits. If the commit then fails the previous record
// is written back, so a failure leaves both the old hash and old ciphertexts.
func (s *Session) ChangeMasterPassword(ctx context.Context, current, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists, err := s.load()
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoUserRegistered
	}

	oldParams, err := rec.KDF.Params()
	if err != nil {
		return err
	}
	if !krypto.VerifyPassword(current, rec.PasswordHash, oldParams) {
		s.log.Warn(ctx, "password change rejected")
		return ErrIncorrectPassword
	}
	if err := ValidateMasterPassword(next); err != nil {
		return err
	}

	fresh, newParams, err := s.newRecord(next)
	if err != nil {
		return err
	}
	prev := rec
	rec.PasswordHash = fresh.PasswordHash
	rec.KDF = fresh.KDF
	rec.Version = store.RecordVersion
	rec.UpdatedAt = fresh.UpdatedAt

	persisted := false
	persist := func() error {
		if err := s.records.Save(rec); err != nil {
			return fmt.Errorf("save auth record: %w", err)
		}
		persisted = true
		return nil
	}

	if s.vault == nil {
		if err := persist(); err != nil {
			return err
		}
	} else {
		from := krypto.NewCipher(s.cipher.Suite())
		to := krypto.NewCipher(s.cipher.Suite())
		defer from.Destroy()
		defer to.Destroy()
		if err := from.Initialize(current, oldParams); err != nil {
			return fmt.Errorf("initialize cipher: %w", err)
		}
		if err := to.Initialize(next, newParams); err != nil {
			return fmt.Errorf("initialize cipher: %w", err)
		}
		if err := s.vault.Rekey(ctx, from, to, persist); err != nil {
			// The record was saved but the rows rolled back to the old key.
			if persisted {
				if rerr := s.records.Save(prev); rerr != nil {
					s.log.Error(ctx, "restore auth record failed", "error", rerr)
					return fmt.Errorf("re-encrypt vault: %w", errors.Join(err, fmt.Errorf("restore auth record: %w", rerr)))
				}
				s.log.Warn(ctx, "password change rolled back", "error", err)
			}
			return fmt.Errorf("re-encrypt vault: %w", err)
		}
	}

	if s.cipher.Ready() {
		if err := s.cipher.Initialize(next, newParams); err != nil {
			return fmt.Errorf("initialize cipher: %w", err)
		}
	}

	s.log.Info(ctx, "master password changed", "kdf", rec.KDF.Name)
	return nil
}

// Reset discards every stored credential and registers next as the new
// master password. The session is logged in afterwards. Callers gate this
// behind their own recovery check.
func (s *Session) Reset(ctx context.Context, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateMasterPassword(next); err != nil {
		return err
	}

	if s.vault != nil {
		if err := s.vault.Purge(ctx); err != nil {
			return fmt.Errorf("purge vault: %w", err)
		}
	}

	rec, params, err := s.newRecord(next)
	if err != nil {
		return err
	}
	if err := s.records.Save(rec); err != nil {
		return fmt.Errorf("save auth record: %w", err)
	}
	if err := s.cipher.Initialize(next, params); err != nil {
		return fmt.Errorf("initialize cipher: %w", err)
	}

	s.log.Warn(ctx, "vault reset")
	return nil
}

// Logout forgets the derived key.
func (s *Session) Logout() {
	s.cipher.Destroy()
}

// Status reports the persisted state without changing it.
func (s *Session) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{MaxAttempts: s.maxAttempts, LoggedIn: s.cipher.Ready()}
	rec, exists, err := s.load()
	if err != nil {
		return st, err
	}
	if !exists {
		return st, nil
	}
	st.Registered = true
	st.Locked = rec.Locked
	st.LoginAttempts = rec.LoginAttempts
	st.KDF = rec.KDF.Name
	if st.KDF == "" {
		st.KDF = krypto.KDFSHA256
	}
	return st, nil
}
