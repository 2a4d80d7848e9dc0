package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CacheEntry is one shared-tier cached answer, visible to all users.
// Sources and Images hold JSON arrays stored as text.
type CacheEntry struct {
	Fingerprint string
	Question    string
	Answer      string
	Sources     string
	Images      string
	Difficulty  string
	Provider    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Hits        int
}

// MemoryEntry is one user's explicitly saved Q&A pair. It never expires
// and is only visible to its owner.
type MemoryEntry struct {
	UserID       string
	Fingerprint  string
	Question     string
	Answer       string
	Sources      string
	Images       string
	CreatedAt    time.Time
	LastAccessed time.Time
	Accesses     int
}

// ConversationTurn is one completed exchange in a user's history.
// Append-only; never mutated after creation. Images holds the answer's
// image references so an explicit save can snapshot them into memory.
type ConversationTurn struct {
	ID         string
	UserID     string
	Question   string
	Answer     string
	Difficulty string
	HasImages  bool
	Sources    string
	Images     string
	Provider   string
	CreatedAt  time.Time
}

// Student holds the per-user attributes that drive curriculum scoping
// and the persona prompt.
type Student struct {
	UserID    string
	Name      string
	Age       int
	Standard  string
	UpdatedAt time.Time
}
