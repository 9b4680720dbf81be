package krypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the length of every derived key (AES-256 / XChaCha20).
	KeySize = 32

	// MinSaltBits ensures salts are at least 92 bits (rounded to 12 bytes).
	MinSaltBits = 92
	// SaltLengthBytes is the enforced salt length in bytes.
	SaltLengthBytes = (MinSaltBits + 7) / 8 // 12 bytes
)

// Supported key-derivation schemes.
const (
	// KDFSHA256 digests the password directly. No salt, no work factor.
	KDFSHA256 = "sha256"
	// KDFArgon2id runs Argon2id over the password with a per-installation salt.
	KDFArgon2id = "argon2id"
)

const (
	infoEncryptionKey = "securevault/encryption-key"
	infoVerifier      = "securevault/password-verifier"
)

// ErrUnknownKDF is returned for a scheme name this package does not implement.
var ErrUnknownKDF = errors.New("unknown kdf")

// Argon2Params captures tunable parameters for Argon2id.
type Argon2Params struct {
	MemoryMB    uint32
	Time        uint32
	Parallelism uint8
}

// DefaultArgon2Params returns sane defaults for deriving a 256-bit key.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryMB:    64,
		Time:        3,
		Parallelism: 1,
	}
}

// KDFParams selects the derivation scheme and carries its inputs.
// The zero value means the unsalted sha256 scheme.
type KDFParams struct {
	Name   string
	Salt   []byte
	Argon2 Argon2Params
}

// NewKDFParams returns fresh parameters for the named scheme, generating a
// random salt when the scheme needs one.
func NewKDFParams(name string) (KDFParams, error) {
	switch name {
	case "", KDFSHA256:
		return KDFParams{Name: KDFSHA256}, nil
	case KDFArgon2id:
		salt, err := NewRandomSalt(SaltLengthBytes)
		if err != nil {
			return KDFParams{}, err
		}
		return KDFParams{Name: KDFArgon2id, Salt: salt, Argon2: DefaultArgon2Params()}, nil
	default:
		return KDFParams{}, fmt.Errorf("%w: %q", ErrUnknownKDF, name)
	}
}

// DeriveKey turns a master password into the symmetric key used by Cipher.
// The result is deterministic for a given password and params.
func DeriveKey(master string, p KDFParams) ([]byte, error) {
	root, err := rootSecret(master, p)
	if err != nil {
		return nil, err
	}
	defer wipe(root)
	return subkey(root, infoEncryptionKey)
}

// rootSecret is the per-scheme secret both the encryption key and the
// password verifier are expanded from.
func rootSecret(master string, p KDFParams) ([]byte, error) {
	switch p.Name {
	case "", KDFSHA256:
		sum := sha256.Sum256([]byte(master))
		out := make([]byte, len(sum))
		copy(out, sum[:])
		wipe(sum[:])
		return out, nil
	case KDFArgon2id:
		return deriveKeyArgon2id([]byte(master), p.Salt, p.Argon2)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKDF, p.Name)
	}
}

func deriveKeyArgon2id(password []byte, salt []byte, p Argon2Params) ([]byte, error) {
	if len(salt) != SaltLengthBytes {
		return nil, fmt.Errorf("salt must be %d bytes (>= %d bits)", SaltLengthBytes, MinSaltBits)
	}
	if p.MemoryMB == 0 {
		return nil, errors.New("memory parameter must be positive")
	}
	if p.Time == 0 {
		return nil, errors.New("time parameter must be positive")
	}
	if p.Parallelism == 0 {
		return nil, errors.New("parallelism must be positive")
	}

	memoryKB := p.MemoryMB * 1024
	key := argon2.IDKey(password, salt, p.Time, memoryKB, p.Parallelism, KeySize)
	if len(key) != KeySize {
		return nil, fmt.Errorf("derived key has unexpected length %d", len(key))
	}
	return key, nil
}

// NewRandomSalt returns a cryptographically secure random salt of length n bytes.
func NewRandomSalt(n int) ([]byte, error) {
	if n <= 0 {
		n = SaltLengthBytes
	}
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
