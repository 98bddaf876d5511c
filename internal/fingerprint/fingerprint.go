package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Size is the length of a fingerprint string.
const Size = sha256.Size * 2

// ErrValidation is returned for content that cannot be fingerprinted.
var ErrValidation = errors.New("validation error")

// ValidationError reports malformed content and where it was detected.
type ValidationError struct {
	Offset int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s at byte %d", e.Reason, e.Offset)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Of returns the fingerprint of content.
func Of(content []byte) (string, error) {
	if off := invalidUTF8(content); off >= 0 {
		return "", &ValidationError{Offset: off, Reason: "invalid UTF-8 sequence"}
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}

// OfString is Of for string content.
func OfString(content string) (string, error) {
	return Of([]byte(content))
}

// Valid reports whether s has the shape of a fingerprint.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func invalidUTF8(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
