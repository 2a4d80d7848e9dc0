package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for the answer cache,
// permanent memory, conversation history, and student profiles.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "gurukit.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for the vector store backend.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Shared cache tier ---

// UpsertCacheEntry inserts or fully replaces the shared cache entry for
// the fingerprint, resetting its expiry and hit counter.
func (s *Store) UpsertCacheEntry(e CacheEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (fingerprint, question, answer, sources, images, difficulty, provider, created_at, expires_at, hits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			sources = excluded.sources,
			images = excluded.images,
			difficulty = excluded.difficulty,
			provider = excluded.provider,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hits = excluded.hits`,
		e.Fingerprint, e.Question, e.Answer, jsonOrEmpty(e.Sources), jsonOrEmpty(e.Images),
		e.Difficulty, e.Provider,
		e.CreatedAt.UTC().Format(time.RFC3339), e.ExpiresAt.UTC().Format(time.RFC3339), e.Hits,
	)
	return err
}

// HitCacheEntry increments the hit counter and returns the entry if it
// exists and has not expired at now. Expired or absent entries return
// ErrNotFound. The counter update and the expiry check share one
// statement so a concurrent sweep can never serve a half-deleted row.
func (s *Store) HitCacheEntry(fingerprint string, now time.Time) (CacheEntry, error) {
	nowStr := now.UTC().Format(time.RFC3339)
	res, err := s.db.Exec(
		`UPDATE cache_entries SET hits = hits + 1 WHERE fingerprint = ? AND expires_at >= ?`,
		fingerprint, nowStr,
	)
	if err != nil {
		return CacheEntry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return CacheEntry{}, err
	}
	if n == 0 {
		return CacheEntry{}, ErrNotFound
	}
	return s.GetCacheEntry(fingerprint)
}

// GetCacheEntry returns the shared cache entry regardless of expiry.
func (s *Store) GetCacheEntry(fingerprint string) (CacheEntry, error) {
	var e CacheEntry
	var createdAt, expiresAt string
	err := s.db.QueryRow(`
		SELECT fingerprint, question, answer, sources, images, difficulty, provider, created_at, expires_at, hits
		FROM cache_entries WHERE fingerprint = ?`, fingerprint,
	).Scan(&e.Fingerprint, &e.Question, &e.Answer, &e.Sources, &e.Images, &e.Difficulty, &e.Provider, &createdAt, &expiresAt, &e.Hits)
	if err == sql.ErrNoRows {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return CacheEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return CacheEntry{}, fmt.Errorf("parsing expires_at: %w", err)
	}
	return e, nil
}

// DeleteExpiredCache removes all shared entries whose expiry has passed
// and returns how many were deleted.
func (s *Store) DeleteExpiredCache(now time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE expires_at < ?`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Permanent memory tier ---

// UpsertMemoryEntry inserts or replaces a user's saved Q&A pair.
func (s *Store) UpsertMemoryEntry(e MemoryEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO memory_entries (user_id, fingerprint, question, answer, sources, images, created_at, last_accessed, accesses)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, fingerprint) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			sources = excluded.sources,
			images = excluded.images,
			created_at = excluded.created_at,
			last_accessed = excluded.last_accessed,
			accesses = excluded.accesses`,
		e.UserID, e.Fingerprint, e.Question, e.Answer, jsonOrEmpty(e.Sources), jsonOrEmpty(e.Images),
		e.CreatedAt.UTC().Format(time.RFC3339), e.LastAccessed.UTC().Format(time.RFC3339), e.Accesses,
	)
	return err
}

// HitMemoryEntry bumps the access counter and last-access timestamp for
// the user's entry and returns it. Returns ErrNotFound if absent.
func (s *Store) HitMemoryEntry(userID, fingerprint string, now time.Time) (MemoryEntry, error) {
	res, err := s.db.Exec(
		`UPDATE memory_entries SET accesses = accesses + 1, last_accessed = ? WHERE user_id = ? AND fingerprint = ?`,
		now.UTC().Format(time.RFC3339), userID, fingerprint,
	)
	if err != nil {
		return MemoryEntry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return MemoryEntry{}, err
	}
	if n == 0 {
		return MemoryEntry{}, ErrNotFound
	}
	return s.GetMemoryEntry(userID, fingerprint)
}

// GetMemoryEntry returns a user's saved entry without touching counters.
func (s *Store) GetMemoryEntry(userID, fingerprint string) (MemoryEntry, error) {
	var e MemoryEntry
	var createdAt, lastAccessed string
	err := s.db.QueryRow(`
		SELECT user_id, fingerprint, question, answer, sources, images, created_at, last_accessed, accesses
		FROM memory_entries WHERE user_id = ? AND fingerprint = ?`, userID, fingerprint,
	).Scan(&e.UserID, &e.Fingerprint, &e.Question, &e.Answer, &e.Sources, &e.Images, &createdAt, &lastAccessed, &e.Accesses)
	if err == sql.ErrNoRows {
		return MemoryEntry{}, ErrNotFound
	}
	if err != nil {
		return MemoryEntry{}, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return MemoryEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.LastAccessed, err = time.Parse(time.RFC3339, lastAccessed); err != nil {
		return MemoryEntry{}, fmt.Errorf("parsing last_accessed: %w", err)
	}
	return e, nil
}

// DeleteMemoryEntry removes a user's saved entry. Returns ErrNotFound
// if there was nothing to delete.
func (s *Store) DeleteMemoryEntry(userID, fingerprint string) error {
	res, err := s.db.Exec(`DELETE FROM memory_entries WHERE user_id = ? AND fingerprint = ?`, userID, fingerprint)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Conversation history ---

// AppendTurn records one completed exchange.
func (s *Store) AppendTurn(t ConversationTurn) error {
	hasImages := 0
	if t.HasImages {
		hasImages = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO conversation_turns (id, user_id, question, answer, difficulty, has_images, sources, images, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Question, t.Answer, t.Difficulty, hasImages,
		jsonOrEmpty(t.Sources), jsonOrEmpty(t.Images), t.Provider, t.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetRecentTurns returns up to limit turns for the user, newest first.
func (s *Store) GetRecentTurns(userID string, limit int) ([]ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, question, answer, difficulty, has_images, sources, images, provider, created_at
		FROM conversation_turns WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ConversationTurn
	for rows.Next() {
		var t ConversationTurn
		var hasImages int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Question, &t.Answer, &t.Difficulty, &hasImages, &t.Sources, &t.Images, &t.Provider, &createdAt); err != nil {
			return nil, err
		}
		t.HasImages = hasImages != 0
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Students ---

// UpsertStudent inserts or updates a student profile.
func (s *Store) UpsertStudent(st Student) error {
	age := st.Age
	if age <= 0 {
		age = 12
	}
	_, err := s.db.Exec(`
		INSERT INTO students (user_id, name, age, standard, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			standard = excluded.standard,
			updated_at = excluded.updated_at`,
		st.UserID, st.Name, age, st.Standard, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetStudent returns a student profile by user ID.
func (s *Store) GetStudent(userID string) (Student, error) {
	var st Student
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT user_id, name, age, standard, updated_at FROM students WHERE user_id = ?`, userID,
	).Scan(&st.UserID, &st.Name, &st.Age, &st.Standard, &updatedAt)
	if err == sql.ErrNoRows {
		return Student{}, ErrNotFound
	}
	if err != nil {
		return Student{}, err
	}
	if st.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Student{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return st, nil
}

// jsonOrEmpty normalizes blank JSON-array columns to "[]".
func jsonOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "[]"
	}
	return s
}
