// Package crypto implements password hashing for the credential store:
// per-user random salts and a SHA-512 digest of password+salt.
package crypto

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// SaltSize is the salt length in bytes before hex encoding.
const SaltSize = 16

// NewSalt generates a cryptographically random per-user salt,
// hex-encoded so it can be stored and concatenated as text.
func NewSalt() (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// HashPassword returns the hex-encoded SHA-512 digest of password
// concatenated with salt. Deterministic for a given pair.
func HashPassword(password, salt string) string {
	sum := sha512.Sum512([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword recomputes the digest for the provided password and
// compares it to the stored hash in constant time.
func VerifyPassword(password, storedHash, storedSalt string) bool {
	computed := HashPassword(password, storedSalt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
