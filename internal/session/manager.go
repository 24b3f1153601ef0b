// Package session issues and validates signed tokens identifying the
// logged-in user between launches of the client.
package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// ErrInvalidToken is returned for expired, malformed, or tampered tokens.
var ErrInvalidToken = errors.New("invalid session token")

// DefaultTTL is how long an issued session stays valid.
const DefaultTTL = 24 * time.Hour

// Claims are the session token claims.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs and validates session tokens with HS256.
type Manager struct {
	key []byte
	ttl time.Duration
}

// NewManager derives the HS256 signing key from secret via HKDF-SHA256
// so a weak or reused secret never becomes the raw HMAC key.
func NewManager(secret []byte, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("chatdesk session signing"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}

	return &Manager{key: key, ttl: ttl}, nil
}

// Issue creates a signed session token for the user.
func (m *Manager) Issue(userID, username string) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "chatdesk",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Validate parses the token and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
