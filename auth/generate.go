package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// DefaultGenerateLength is used when GenerateOptions.Length is not positive.
	DefaultGenerateLength = 16
	// MaxGenerateLength bounds generated passwords.
	MaxGenerateLength = 1024

	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// GenerateOptions selects the alphabet and length of a generated password.
type GenerateOptions struct {
	Length  int
	Upper   bool
	Lower   bool
	Digits  bool
	Symbols bool
}

// DefaultGenerateOptions enables every character class at the default length.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Length:  DefaultGenerateLength,
		Upper:   true,
		Lower:   true,
		Digits:  true,
		Symbols: true,
	}
}

// GeneratePassword draws uniformly from the selected classes using
// crypto/rand. With every class disabled it falls back to letters and digits.
func GeneratePassword(opts GenerateOptions) (string, error) {
	length := opts.Length
	if length <= 0 {
		length = DefaultGenerateLength
	}
	if length > MaxGenerateLength {
		return "", fmt.Errorf("password length %d exceeds maximum %d", length, MaxGenerateLength)
	}

	var alphabet string
	if opts.Upper {
		alphabet += upperChars
	}
	if opts.Lower {
		alphabet += lowerChars
	}
	if opts.Digits {
		alphabet += digitChars
	}
	if opts.Symbols {
		alphabet += symbolChars
	}
	if alphabet == "" {
		alphabet = upperChars + lowerChars + digitChars
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
