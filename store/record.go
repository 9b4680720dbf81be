package store

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Hussein-Mazeh/SecureVault/krypto"
)

// RecordVersion is the current auth.json layout.
const RecordVersion = 1

// KDFConfig describes the key-derivation parameters stored with the auth record.
type KDFConfig struct {
	Name        string `json:"name"`
	Salt        string `json:"salt,omitempty"`
	MemoryMB    uint32 `json:"memoryMB,omitempty"`
	Time        uint32 `json:"time,omitempty"`
	Parallelism uint8  `json:"parallelism,omitempty"`
}

// AuthRecord is the persisted login state of the single vault user.
type AuthRecord struct {
	Version       int       `json:"version"`
	PasswordHash  string    `json:"password_hash"`
	Locked        bool      `json:"locked"`
	LoginAttempts int       `json:"login_attempts"`
	KDF           KDFConfig `json:"kdf"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewKDFConfig captures p in its persisted form.
func NewKDFConfig(p krypto.KDFParams) KDFConfig {
	cfg := KDFConfig{Name: p.Name}
	if cfg.Name == "" {
		cfg.Name = krypto.KDFSHA256
	}
	if cfg.Name == krypto.KDFArgon2id {
		cfg.Salt = base64.StdEncoding.EncodeToString(p.Salt)
		cfg.MemoryMB = p.Argon2.MemoryMB
		cfg.Time = p.Argon2.Time
		cfg.Parallelism = p.Argon2.Parallelism
	}
	return cfg
}

// Params rebuilds the krypto parameters. Records written before the kdf
// field existed carry an empty name and use the sha256 scheme.
func (c KDFConfig) Params() (krypto.KDFParams, error) {
	switch c.Name {
	case "", krypto.KDFSHA256:
		return krypto.KDFParams{Name: krypto.KDFSHA256}, nil
	case krypto.KDFArgon2id:
		salt, err := base64.StdEncoding.DecodeString(c.Salt)
		if err != nil {
			return krypto.KDFParams{}, fmt.Errorf("%w: decode salt: %v", ErrCorruptRecord, err)
		}
		return krypto.KDFParams{
			Name: krypto.KDFArgon2id,
			Salt: salt,
			Argon2: krypto.Argon2Params{
				MemoryMB:    c.MemoryMB,
				Time:        c.Time,
				Parallelism: c.Parallelism,
			},
		}, nil
	default:
		return krypto.KDFParams{}, fmt.Errorf("%w: unsupported kdf %q", ErrCorruptRecord, c.Name)
	}
}
