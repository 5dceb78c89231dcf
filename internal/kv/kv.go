// Package kv provides the persistent key-value store the controller keeps
// its state in: a small set of named JSON blobs (sessions, activeSessions,
// viewMode, grants). Every mutation rewrites the whole blob; there is no
// delta persistence.
package kv

import "errors"

// ErrNotFound is returned when a key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Store persists named JSON blobs.
type Store interface {
	// Get returns the raw JSON stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Set writes the raw JSON under key, replacing any previous value.
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Close releases underlying resources.
	Close() error
}

// Well-known blob keys.
const (
	KeySessions       = "sessions"
	KeyActiveSessions = "activeSessions"
	KeyViewMode       = "viewMode"
	KeyGrants         = "grants"
)
