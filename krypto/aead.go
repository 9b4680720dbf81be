package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Suite identifies the AEAD algorithm. It is written as the first byte of
// every ciphertext so Decrypt never needs to be told which one was used.
type Suite byte

const (
	SuiteAESGCM            Suite = 1
	SuiteXChaCha20Poly1305 Suite = 2
)

// Suite names as they appear in configuration.
const (
	SuiteNameAESGCM            = "aes-256-gcm"
	SuiteNameXChaCha20Poly1305 = "xchacha20-poly1305"
)

// ParseSuite maps a configuration name to a Suite. An empty name selects AES-256-GCM.
func ParseSuite(name string) (Suite, error) {
	switch name {
	case "", SuiteNameAESGCM:
		return SuiteAESGCM, nil
	case SuiteNameXChaCha20Poly1305:
		return SuiteXChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("unknown cipher suite %q", name)
	}
}

func (s Suite) String() string {
	switch s {
	case SuiteAESGCM:
		return SuiteNameAESGCM
	case SuiteXChaCha20Poly1305:
		return SuiteNameXChaCha20Poly1305
	default:
		return fmt.Sprintf("suite(%d)", byte(s))
	}
}

func (s Suite) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%s requires a %d-byte key", s, KeySize)
	}
	switch s {
	case SuiteAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("create gcm: %w", err)
		}
		return gcm, nil
	case SuiteXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("create xchacha20-poly1305: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("unsupported %s", s)
	}
}

// seal encrypts plaintext and returns suite || nonce || ciphertext+tag.
func seal(s Suite, key, plaintext []byte) ([]byte, error) {
	aead, err := s.aead(key)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+aead.Overhead())
	out[0] = byte(s)
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return aead.Seal(out, out[1:], plaintext, nil), nil
}

// open reverses seal. Every failure, including an unknown suite byte or a
// short blob, is reported as ErrDecryptionFailed.
func open(key, blob []byte) ([]byte, error) {
	if len(blob) < 1 {
		return nil, fmt.Errorf("%w: empty ciphertext", ErrDecryptionFailed)
	}

	aead, err := Suite(blob[0]).aead(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	body := blob[1:]
	nonceSize := aead.NonceSize()
	if len(body) < nonceSize+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := aead.Open(nil, body[:nonceSize], body[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
