// Package cache implements the two-tier answer cache: a per-user
// permanent memory and a time-boxed, hit-counted shared cache. Tier
// precedence (permanent before shared before live retrieval) is owned
// by the pipeline; this package owns expiry and counter semantics.
package cache

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gurukit/gurukit/internal/storage"
)

// DefaultTTL is the shared-tier retention window.
const DefaultTTL = 10 * 24 * time.Hour

// Backend defines the persistence operations the Store needs.
// Implemented by storage.Store.
type Backend interface {
	UpsertCacheEntry(e storage.CacheEntry) error
	HitCacheEntry(fingerprint string, now time.Time) (storage.CacheEntry, error)
	DeleteExpiredCache(now time.Time) (int64, error)
	UpsertMemoryEntry(e storage.MemoryEntry) error
	HitMemoryEntry(userID, fingerprint string, now time.Time) (storage.MemoryEntry, error)
	DeleteMemoryEntry(userID, fingerprint string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store provides tiered cache access over a persistence backend.
type Store struct {
	backend Backend
	clock   Clock
	ttl     time.Duration
}

// New creates a Store with the given shared-tier TTL.
// If ttl <= 0, DefaultTTL (10 days) is used.
func New(backend Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{backend: backend, clock: realClock{}, ttl: ttl}
}

// NewWithClock creates a Store with a custom clock (for testing).
func NewWithClock(backend Backend, ttl time.Duration, clock Clock) *Store {
	s := New(backend, ttl)
	s.clock = clock
	return s
}

// TTL returns the configured shared-tier retention window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// LookupPermanent returns the user's saved entry for the fingerprint,
// bumping its access counter and last-access timestamp. ok is false on
// a miss; err is reserved for storage failures.
func (s *Store) LookupPermanent(userID, fingerprint string) (storage.MemoryEntry, bool, error) {
	e, err := s.backend.HitMemoryEntry(userID, fingerprint, s.clock.Now())
	if err == storage.ErrNotFound {
		return storage.MemoryEntry{}, false, nil
	}
	if err != nil {
		return storage.MemoryEntry{}, false, fmt.Errorf("permanent memory lookup: %w", err)
	}
	return e, true, nil
}

// LookupShared returns the shared entry for the fingerprint if it has
// not expired, incrementing its hit counter. Expired entries are
// reported as misses; the sweep deletes them later.
func (s *Store) LookupShared(fingerprint string) (storage.CacheEntry, bool, error) {
	e, err := s.backend.HitCacheEntry(fingerprint, s.clock.Now())
	if err == storage.ErrNotFound {
		return storage.CacheEntry{}, false, nil
	}
	if err != nil {
		return storage.CacheEntry{}, false, fmt.Errorf("shared cache lookup: %w", err)
	}
	return e, true, nil
}

// Store upserts a shared entry, overwriting any prior entry for the
// fingerprint and restarting its retention window from now.
func (s *Store) Store(e storage.CacheEntry) error {
	now := s.clock.Now()
	e.CreatedAt = now
	e.ExpiresAt = now.Add(s.ttl)
	e.Hits = 0
	if err := s.backend.UpsertCacheEntry(e); err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// EvictExpired sweeps the shared tier and returns the eviction count.
func (s *Store) EvictExpired() (int64, error) {
	n, err := s.backend.DeleteExpiredCache(s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("evicting expired cache entries: %w", err)
	}
	if n > 0 {
		slog.Info("evicted expired cache entries", "count", n)
	}
	return n, nil
}

// SaveMemory persists an explicitly saved Q&A pair for the user.
func (s *Store) SaveMemory(e storage.MemoryEntry) error {
	now := s.clock.Now()
	e.CreatedAt = now
	e.LastAccessed = now
	e.Accesses = 0
	if err := s.backend.UpsertMemoryEntry(e); err != nil {
		return fmt.Errorf("saving memory entry: %w", err)
	}
	return nil
}

// ForgetMemory removes the user's saved entry for the fingerprint.
// Returns storage.ErrNotFound when there was nothing to forget.
func (s *Store) ForgetMemory(userID, fingerprint string) error {
	return s.backend.DeleteMemoryEntry(userID, fingerprint)
}
