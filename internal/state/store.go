// Package state persists the client's local session between launches
// so a still-valid login survives a restart.
package state

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// ErrSessionNotFound indicates no session is stored.
var ErrSessionNotFound = errors.New("session not found")

var (
	bucketSession = []byte("session")
	bucketSecrets = []byte("secrets")

	sessionKey = []byte("current")
	signingKey = []byte("signing")
)

const signingSecretSize = 32

// Session is the locally persisted login state. The token is the
// authority; Username is kept only for greeting before validation.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Store is a BoltDB-backed session store.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the state database at dbPath.
func New(ctx context.Context, dbPath string) (*Store, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSession); err != nil {
			return fmt.Errorf("failed to create session bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSecrets); err != nil {
			return fmt.Errorf("failed to create secrets bucket: %w", err)
		}
		return nil
	})
}

// SaveSession stores the current session, replacing any previous one.
func (s *Store) SaveSession(ctx context.Context, session *Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return fmt.Errorf("session bucket not found")
		}

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		if err := bucket.Put(sessionKey, data); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}

		return nil
	})
}

// GetSession retrieves the stored session.
func (s *Store) GetSession(ctx context.Context) (*Session, error) {
	var session *Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return fmt.Errorf("session bucket not found")
		}

		data := bucket.Get(sessionKey)
		if data == nil {
			return ErrSessionNotFound
		}

		session = &Session{}
		if err := json.Unmarshal(data, session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return session, nil
}

// SigningSecret returns the token signing secret, generating and
// persisting a new one on first use. Rotating the secret (by deleting
// the state database) invalidates every stored session.
func (s *Store) SigningSecret(ctx context.Context) ([]byte, error) {
	var secret []byte

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSecrets)
		if bucket == nil {
			return fmt.Errorf("secrets bucket not found")
		}

		if existing := bucket.Get(signingKey); existing != nil {
			secret = append([]byte(nil), existing...)
			return nil
		}

		secret = make([]byte, signingSecretSize)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate signing secret: %w", err)
		}

		if err := bucket.Put(signingKey, secret); err != nil {
			return fmt.Errorf("failed to save signing secret: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return secret, nil
}

// DeleteSession removes the stored session (logout). Deleting when no
// session is stored is not an error.
func (s *Store) DeleteSession(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketSession)
		if bucket == nil {
			return fmt.Errorf("session bucket not found")
		}

		if err := bucket.Delete(sessionKey); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}

		return nil
	})
}
