package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/SecureVault/auth"
)

func TestGeneratePasswordDefaults(t *testing.T) {
	pw, err := auth.GeneratePassword(auth.DefaultGenerateOptions())
	require.NoError(t, err)
	assert.Len(t, pw, auth.DefaultGenerateLength)

	other, err := auth.GeneratePassword(auth.DefaultGenerateOptions())
	require.NoError(t, err)
	assert.NotEqual(t, pw, other)
}

func TestGeneratePasswordAlphabet(t *testing.T) {
	pw, err := auth.GeneratePassword(auth.GenerateOptions{Length: 64, Digits: true})
	require.NoError(t, err)
	assert.Len(t, pw, 64)
	assert.Empty(t, strings.Trim(pw, "0123456789"))

	// No class selected falls back to letters and digits.
	pw, err = auth.GeneratePassword(auth.GenerateOptions{Length: 200})
	require.NoError(t, err)
	for _, r := range pw {
		assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'), "unexpected rune %q", r)
	}
}

func TestGeneratePasswordLength(t *testing.T) {
	pw, err := auth.GeneratePassword(auth.GenerateOptions{Length: -3, Lower: true})
	require.NoError(t, err)
	assert.Len(t, pw, auth.DefaultGenerateLength)

	_, err = auth.GeneratePassword(auth.GenerateOptions{Length: auth.MaxGenerateLength + 1})
	assert.Error(t, err)
}
