// Package password validates or generates the transfer password both
// peers feed into the PAKE handshake.
package password

import (
	"crypto/rand"
	"fmt"
	"io"
)

// MinLength is the minimum number of UTF-8 characters (runes) a
// user-supplied password must have.
const MinLength = 16

// GeneratedLength is the number of characters in a generated password.
const GeneratedLength = 16

// alphabet excludes visually ambiguous characters (0/O, I/l/1, lowercase o)
// so a generated password can be typed or read aloud without confusion.
// 56 characters, matching the entropy budget in §6.
const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// ValidateOrGenerate returns opt unchanged if it satisfies MinLength, or
// generates a fresh random password when opt is empty. An opt that is
// non-empty but too short is rejected rather than silently padded.
func ValidateOrGenerate(opt string) (string, error) {
	if opt == "" {
		return generate()
	}
	if n := len([]rune(opt)); n < MinLength {
		return "", fmt.Errorf("password: must be at least %d characters, got %d", MinLength, n)
	}
	return opt, nil
}

func generate() (string, error) {
	indices := make([]byte, GeneratedLength)
	if _, err := io.ReadFull(rand.Reader, indices); err != nil {
		return "", fmt.Errorf("password: failed to generate random bytes: %w", err)
	}

	pw := make([]byte, GeneratedLength)
	for i, b := range indices {
		pw[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(pw), nil
}
