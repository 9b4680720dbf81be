package krypto

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrEncryptionNotInitialized means Encrypt or Decrypt ran before Initialize.
	ErrEncryptionNotInitialized = errors.New("encryption not initialized")
	// ErrDecryptionFailed covers wrong keys, truncation and tampering alike.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Cipher is the authenticated cipher bound to one master password.
//
// A new Cipher is Uninitialized. Initialize derives the key and moves it to
// Ready; Destroy wipes the key and moves it back.
type Cipher struct {
	mu    sync.RWMutex
	suite Suite
	key   []byte
}

// NewCipher returns an Uninitialized cipher that will encrypt with suite.
func NewCipher(suite Suite) *Cipher {
	if suite == 0 {
		suite = SuiteAESGCM
	}
	return &Cipher{suite: suite}
}

// Initialize derives the key for master and stores it, replacing any previous key.
func (c *Cipher) Initialize(master string, p KDFParams) error {
	key, err := DeriveKey(master, p)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	wipe(c.key)
	c.key = key
	return nil
}

// Ready reports whether the cipher holds a key.
func (c *Cipher) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key != nil
}

// Suite returns the suite used for new ciphertexts.
func (c *Cipher) Suite() Suite {
	return c.suite
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return nil, ErrEncryptionNotInitialized
	}
	return seal(c.suite, c.key, plaintext)
}

// Decrypt opens a ciphertext produced by Encrypt under the same key.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return nil, ErrEncryptionNotInitialized
	}
	return open(c.key, ciphertext)
}

// Destroy zeroes the key. The cipher is Uninitialized afterwards.
func (c *Cipher) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	wipe(c.key)
	c.key = nil
}
