package krypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyCipher(t *testing.T, suite Suite, master string) *Cipher {
	t.Helper()
	c := NewCipher(suite)
	require.NoError(t, c.Initialize(master, KDFParams{Name: KDFSHA256}))
	return c
}

func TestCipherUninitialized(t *testing.T) {
	c := NewCipher(SuiteAESGCM)
	assert.False(t, c.Ready())

	_, err := c.Encrypt([]byte("secret"))
	assert.ErrorIs(t, err, ErrEncryptionNotInitialized)

	_, err = c.Decrypt([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrEncryptionNotInitialized)
}

func TestCipherRoundTrip(t *testing.T) {
	for _, suite := range []Suite{SuiteAESGCM, SuiteXChaCha20Poly1305} {
		t.Run(suite.String(), func(t *testing.T) {
			c := readyCipher(t, suite, "Str0ng!Pass123")

			for _, msg := range [][]byte{nil, []byte("x"), bytes.Repeat([]byte("hunter2"), 100)} {
				ct, err := c.Encrypt(msg)
				require.NoError(t, err)
				assert.Equal(t, byte(suite), ct[0])

				pt, err := c.Decrypt(ct)
				require.NoError(t, err)
				assert.Equal(t, string(msg), string(pt))
			}
		})
	}
}

func TestCipherFreshNoncePerEncryption(t *testing.T) {
	c := readyCipher(t, SuiteAESGCM, "Str0ng!Pass123")

	a, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipherRejectsEveryFlippedByte(t *testing.T) {
	for _, suite := range []Suite{SuiteAESGCM, SuiteXChaCha20Poly1305} {
		t.Run(suite.String(), func(t *testing.T) {
			c := readyCipher(t, suite, "Str0ng!Pass123")
			ct, err := c.Encrypt([]byte("correct horse battery staple"))
			require.NoError(t, err)

			for i := range ct {
				tampered := append([]byte(nil), ct...)
				tampered[i] ^= 0x01

				pt, err := c.Decrypt(tampered)
				assert.ErrorIs(t, err, ErrDecryptionFailed, "byte %d", i)
				assert.Nil(t, pt, "byte %d", i)
			}
		})
	}
}

func TestCipherRejectsForeignKey(t *testing.T) {
	alice := readyCipher(t, SuiteAESGCM, "Str0ng!Pass123")
	mallory := readyCipher(t, SuiteAESGCM, "Other!Pass456")

	ct, err := alice.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = mallory.Decrypt(ct)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestCipherRejectsShortInput(t *testing.T) {
	c := readyCipher(t, SuiteAESGCM, "Str0ng!Pass123")

	for _, in := range [][]byte{nil, {}, {byte(SuiteAESGCM)}, {byte(SuiteAESGCM), 0, 1, 2}} {
		_, err := c.Decrypt(in)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	}
}

func TestCipherDecryptsEitherSuite(t *testing.T) {
	gcm := readyCipher(t, SuiteAESGCM, "Str0ng!Pass123")
	xchacha := readyCipher(t, SuiteXChaCha20Poly1305, "Str0ng!Pass123")

	ct, err := gcm.Encrypt([]byte("portable"))
	require.NoError(t, err)

	pt, err := xchacha.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "portable", string(pt))
}

func TestCipherDestroy(t *testing.T) {
	c := readyCipher(t, SuiteAESGCM, "Str0ng!Pass123")
	ct, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)

	c.Destroy()
	assert.False(t, c.Ready())

	_, err = c.Decrypt(ct)
	assert.ErrorIs(t, err, ErrEncryptionNotInitialized)

	// Re-initializing with the same password reads old data again.
	require.NoError(t, c.Initialize("Str0ng!Pass123", KDFParams{}))
	pt, err := c.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(pt))
}

func TestParseSuite(t *testing.T) {
	s, err := ParseSuite("")
	require.NoError(t, err)
	assert.Equal(t, SuiteAESGCM, s)

	s, err = ParseSuite(SuiteNameXChaCha20Poly1305)
	require.NoError(t, err)
	assert.Equal(t, SuiteXChaCha20Poly1305, s)

	_, err = ParseSuite("rot13")
	assert.Error(t, err)
}
