// Package credential owns the bearer token that proves authentication
// to the backend. The token lives in memory and is mirrored to durable
// storage so a restart can recover the session; reads always come from
// memory so a Set or Clear is visible to the very next request with no
// staleness window.
package credential

import (
	"log/slog"
	"sync"
)

// Durable namespace and key for the mirrored token.
const (
	mirrorNamespace = "auth"
	mirrorKey       = "token"
)

// Mirror is the durable half of the store. *statestore.Store satisfies it.
type Mirror interface {
	Get(namespace, key string) (string, error)
	Set(namespace, key, value string) error
	Delete(namespace, key string) error
}

// Store holds the current bearer token. There is at most one valid
// token at a time; it exists exactly while the user is considered
// authenticated. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	token  string
	mirror Mirror
	logger *slog.Logger
}

// NewStore creates a credential store seeded from the durable mirror.
// The mirror is read only here, at construction; afterwards it is
// write-only. A nil mirror gives a memory-only store (used in tests).
func NewStore(mirror Mirror, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{mirror: mirror, logger: logger}
	if mirror != nil {
		tok, err := mirror.Get(mirrorNamespace, mirrorKey)
		if err != nil {
			logger.Warn("failed to read stored credential", "error", err)
		} else {
			s.token = tok
		}
	}
	return s
}

// Set stores a new token in memory and in the durable mirror. Memory is
// the source of truth; a mirror write failure is logged and otherwise
// ignored so a flaky disk cannot log the user out.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Set(mirrorNamespace, mirrorKey, token); err != nil {
		s.logger.Warn("failed to persist credential", "error", err)
	}
}

// Get returns the current token, or the empty string when the user is
// not authenticated. Never touches durable storage.
func (s *Store) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Clear removes the token from memory and from the durable mirror.
// Clearing is the single source of truth for "logged out" and never
// depends on any backend call succeeding.
func (s *Store) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Delete(mirrorNamespace, mirrorKey); err != nil {
		s.logger.Warn("failed to remove persisted credential", "error", err)
	}
}

// Present reports whether a token is currently held.
func (s *Store) Present() bool {
	return s.Get() != ""
}
