// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor used for new hashes.
var Cost = bcrypt.DefaultCost

// Hash returns the bcrypt hash of pw.
func Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), Cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// Verify reports whether pw matches hash. Malformed hashes never match.
func Verify(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

// ErrTooLong is returned by Hash for passwords bcrypt cannot handle.
var ErrTooLong = bcrypt.ErrPasswordTooLong

// IsTooLong reports whether err was caused by an overlong password.
func IsTooLong(err error) bool { return errors.Is(err, ErrTooLong) }
