package krypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// HashPassword returns the hex verifier stored for login comparisons.
// It comes from the same root secret as DeriveKey but a different HKDF label,
// so the stored digest never reveals the encryption key.
func HashPassword(master string, p KDFParams) (string, error) {
	root, err := rootSecret(master, p)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	defer wipe(root)

	verifier, err := subkey(root, infoVerifier)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	defer wipe(verifier)

	return hex.EncodeToString(verifier), nil
}

// VerifyPassword recomputes the verifier for master and compares it to digest
// in constant time.
func VerifyPassword(master, digest string, p KDFParams) bool {
	got, err := HashPassword(master, p)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}
