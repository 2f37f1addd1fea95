// Package cache persists compiled outputs in SQLite so unchanged units are not
// compiled again.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Entry is one cached compilation result.
type Entry struct {
	Key       string
	Path      string
	Language  string
	Version   string
	Code      []byte
	Bindings  int
	BuildID   string
	UpdatedAt time.Time
}

// Build records one build run.
type Build struct {
	ID         string
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time
	Units      int
	Failures   int
	CacheHits  int
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("cache path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}
	// busy_timeout + WAL reduce lock conflicts while watch mode rebuilds.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite cache %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("cache is closed")
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Key identifies a compilation input. Any change to the language, the source
// or the compiler version yields a new key.
func Key(language string, source []byte, version string) string {
	h := sha256.New()
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write(source)
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Store) Get(key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		entry      Entry
		updatedRaw string
	)
	err := s.withRetry("get output", func() error {
		return s.db.QueryRow(`
SELECT key, path, language, compiler_version, code, bindings, build_id, updated_at_utc
FROM outputs WHERE key = ?`, key).Scan(
			&entry.Key,
			&entry.Path,
			&entry.Language,
			&entry.Version,
			&entry.Code,
			&entry.Bindings,
			&entry.BuildID,
			&updatedRaw,
		)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.UpdatedAt = ts.UTC()
	}
	return entry, true, nil
}

func (s *Store) Put(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(entry.Key) == "" {
		return fmt.Errorf("cache entry key must not be empty")
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now().UTC()
	}

	return s.withRetry("put output", func() error {
		_, err := s.db.Exec(`
INSERT INTO outputs (key, path, language, compiler_version, code, bindings, build_id, updated_at_utc)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  path=excluded.path,
  build_id=excluded.build_id,
  updated_at_utc=excluded.updated_at_utc
`,
			entry.Key,
			entry.Path,
			entry.Language,
			entry.Version,
			entry.Code,
			entry.Bindings,
			entry.BuildID,
			entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

// Prune drops outputs not touched since before.
func (s *Store) Prune(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	err := s.withRetry("prune outputs", func() error {
		res, err := s.db.Exec(`DELETE FROM outputs WHERE updated_at_utc < ?`, before.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// BeginBuild registers a new build and returns its id.
func (s *Store) BeginBuild(version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	err := s.withRetry("begin build", func() error {
		_, err := s.db.Exec(
			`INSERT INTO builds (build_id, compiler_version, started_at_utc) VALUES (?, ?, ?)`,
			id, version, time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) FinishBuild(id string, units, failures, cacheHits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("finish build", func() error {
		res, err := s.db.Exec(`
UPDATE builds SET finished_at_utc = ?, units = ?, failures = ?, cache_hits = ?
WHERE build_id = ?`,
			time.Now().UTC().Format(time.RFC3339Nano), units, failures, cacheHits, id,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("unknown build %q", id)
		}
		return nil
	})
}

// Builds returns the most recent builds first.
func (s *Store) Builds(limit int) ([]Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
SELECT build_id, compiler_version, started_at_utc, finished_at_utc, units, failures, cache_hits
FROM builds ORDER BY started_at_utc DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var (
			b                       Build
			startedRaw, finishedRaw string
		)
		if err := rows.Scan(&b.ID, &b.Version, &startedRaw, &finishedRaw, &b.Units, &b.Failures, &b.CacheHits); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		started, err := time.Parse(time.RFC3339Nano, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse build start %q: %w", startedRaw, err)
		}
		b.StartedAt = started.UTC()
		if finishedRaw != "" {
			finished, err := time.Parse(time.RFC3339Nano, finishedRaw)
			if err != nil {
				return nil, fmt.Errorf("parse build finish %q: %w", finishedRaw, err)
			}
			b.FinishedAt = finished.UTC()
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate build rows: %w", err)
	}
	return builds, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	if errors.Is(lastErr, sql.ErrNoRows) {
		return lastErr
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// IsCorruptError reports errors that mean the cache file should be discarded.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
