package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWeakPassword is matched by every *WeakPasswordError.
	ErrWeakPassword = errors.New("password is too weak")
	// ErrUserAlreadyExists is returned by Register when a record exists.
	ErrUserAlreadyExists = errors.New("a user is already registered")
	// ErrNoUserRegistered is returned when no auth record exists yet.
	ErrNoUserRegistered = errors.New("no user registered")
	// ErrAccountLocked is returned by Login while the lockout is active.
	ErrAccountLocked = errors.New("account is locked after too many failed attempts")
	// ErrIncorrectPassword is returned by ChangeMasterPassword when the
	// current password does not verify.
	ErrIncorrectPassword = errors.New("incorrect master password")
)

// WeakPasswordError carries the evaluation that caused a rejection so the
// caller can show feedback.
type WeakPasswordError struct {
	Strength Strength
}

func (e *WeakPasswordError) Error() string {
	if len(e.Strength.Feedback) == 0 {
		return fmt.Sprintf("%s (score %d/%d)", ErrWeakPassword, e.Strength.Score, MaxScore)
	}
	missing := make([]string, len(e.Strength.Feedback))
	for i, c := range e.Strength.Feedback {
		missing[i] = string(c)
	}
	return fmt.Sprintf("%s (score %d/%d, missing: %s)",
		ErrWeakPassword, e.Strength.Score, MaxScore, strings.Join(missing, ", "))
}

func (e *WeakPasswordError) Unwrap() error {
	return ErrWeakPassword
}
