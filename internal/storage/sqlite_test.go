package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestCacheEntryLifecycle(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	entry := CacheEntry{
		Fingerprint: "fp1",
		Question:    "What is photosynthesis?",
		Answer:      "Plants make food from light.",
		Sources:     `["Std 6, Science, Ch 1"]`,
		Difficulty:  "normal",
		Provider:    "openai",
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * 24 * time.Hour),
	}
	if err := s.UpsertCacheEntry(entry); err != nil {
		t.Fatalf("UpsertCacheEntry: %v", err)
	}

	// Valid hit increments the counter.
	got, err := s.HitCacheEntry("fp1", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("HitCacheEntry: %v", err)
	}
	if got.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", got.Hits)
	}
	if got.Answer != entry.Answer {
		t.Errorf("answer changed on read: %q", got.Answer)
	}

	// Hit at 9 days is valid, at 10 days + 1s it is a miss.
	if _, err := s.HitCacheEntry("fp1", now.Add(9*24*time.Hour)); err != nil {
		t.Errorf("expected hit at 9 days, got %v", err)
	}
	if _, err := s.HitCacheEntry("fp1", now.Add(10*24*time.Hour+time.Second)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound past expiry, got %v", err)
	}
}

func TestCacheEntryUpsertResets(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	e := CacheEntry{Fingerprint: "fp1", Question: "q", Answer: "old", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := s.UpsertCacheEntry(e); err != nil {
		t.Fatalf("UpsertCacheEntry: %v", err)
	}
	if _, err := s.HitCacheEntry("fp1", now); err != nil {
		t.Fatalf("HitCacheEntry: %v", err)
	}

	e.Answer = "new"
	e.ExpiresAt = now.Add(2 * time.Hour)
	if err := s.UpsertCacheEntry(e); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.GetCacheEntry("fp1")
	if err != nil {
		t.Fatalf("GetCacheEntry: %v", err)
	}
	if got.Answer != "new" {
		t.Errorf("expected superseded answer, got %q", got.Answer)
	}
	if got.Hits != 0 {
		t.Errorf("expected hit counter reset on upsert, got %d", got.Hits)
	}
}

func TestDeleteExpiredCache(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		e := CacheEntry{
			Fingerprint: string(rune('a' + i)),
			Question:    "q", Answer: "a",
			CreatedAt: now.Add(-2 * time.Hour),
			ExpiresAt: exp,
		}
		if err := s.UpsertCacheEntry(e); err != nil {
			t.Fatalf("UpsertCacheEntry: %v", err)
		}
	}

	n, err := s.DeleteExpiredCache(now)
	if err != nil {
		t.Fatalf("DeleteExpiredCache: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 evicted, got %d", n)
	}

	if _, err := s.GetCacheEntry("c"); err != nil {
		t.Errorf("unexpired entry removed: %v", err)
	}
}

func TestMemoryEntryLifecycle(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()
	e := MemoryEntry{
		UserID:       "u1",
		Fingerprint:  "fp1",
		Question:     "What is the water cycle?",
		Answer:       "Evaporation, condensation, precipitation.",
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := s.UpsertMemoryEntry(e); err != nil {
		t.Fatalf("UpsertMemoryEntry: %v", err)
	}

	later := now.Add(time.Hour)
	got, err := s.HitMemoryEntry("u1", "fp1", later)
	if err != nil {
		t.Fatalf("HitMemoryEntry: %v", err)
	}
	if got.Accesses != 1 {
		t.Errorf("expected 1 access, got %d", got.Accesses)
	}
	if !got.LastAccessed.Equal(later.Truncate(time.Second)) {
		t.Errorf("last_accessed not updated: %v", got.LastAccessed)
	}

	// Scoped to user: another user never sees it.
	if _, err := s.HitMemoryEntry("u2", "fp1", later); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}

	if err := s.DeleteMemoryEntry("u1", "fp1"); err != nil {
		t.Fatalf("DeleteMemoryEntry: %v", err)
	}
	if err := s.DeleteMemoryEntry("u1", "fp1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRecentTurnsOrder(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		turn := ConversationTurn{
			ID:         string(rune('a' + i)),
			UserID:     "u1",
			Question:   "q",
			Answer:     "a",
			Difficulty: "normal",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendTurn(turn); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	turns, err := s.GetRecentTurns("u1", 3)
	if err != nil {
		t.Fatalf("GetRecentTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].ID != "e" {
		t.Errorf("expected newest first, got %q", turns[0].ID)
	}

	other, err := s.GetRecentTurns("u2", 3)
	if err != nil {
		t.Fatalf("GetRecentTurns for other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no turns for other user, got %d", len(other))
	}
}

func TestTurnImagesRoundTrip(t *testing.T) {
	s := openTestStore(t)

	turn := ConversationTurn{
		ID:         "t1",
		UserID:     "u1",
		Question:   "q",
		Answer:     "a",
		Difficulty: "normal",
		HasImages:  true,
		Sources:    `["Std 6, Science, Ch 1, p.7"]`,
		Images:     `["leaf.png","cell.png"]`,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.AppendTurn(turn); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	turns, err := s.GetRecentTurns("u1", 1)
	if err != nil {
		t.Fatalf("GetRecentTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Images != `["leaf.png","cell.png"]` {
		t.Errorf("images %q, want the stored list", turns[0].Images)
	}
	if !turns[0].HasImages {
		t.Error("HasImages lost in round trip")
	}
}

func TestStudentUpsert(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetStudent("u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.UpsertStudent(Student{UserID: "u1", Name: "Asha", Age: 11, Standard: "6"}); err != nil {
		t.Fatalf("UpsertStudent: %v", err)
	}
	st, err := s.GetStudent("u1")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if st.Standard != "6" || st.Age != 11 {
		t.Errorf("unexpected student row: %+v", st)
	}

	// Zero age falls back to the default.
	if err := s.UpsertStudent(Student{UserID: "u2"}); err != nil {
		t.Fatalf("UpsertStudent: %v", err)
	}
	st2, err := s.GetStudent("u2")
	if err != nil {
		t.Fatalf("GetStudent: %v", err)
	}
	if st2.Age != 12 {
		t.Errorf("expected default age 12, got %d", st2.Age)
	}
}
