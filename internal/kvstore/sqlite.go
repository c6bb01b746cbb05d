package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	appLog "jamati/internal/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key    TEXT PRIMARY KEY,
	value  TEXT,
	rev    INTEGER NOT NULL,
	origin TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_rev ON kv(rev);
`

const defaultWatchInterval = 500 * time.Millisecond

// SQLite is a file-backed Store shared between processes. Every write
// stamps a global revision and the writer's origin id; the watcher reports
// rows written by other origins since the last revision it saw. Removed
// keys are kept as NULL tombstones so that removals propagate too.
type SQLite struct {
	db     *sql.DB
	origin string
	subs   subscribers

	watchInterval time.Duration
	lastRev       int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SQLiteOption customizes OpenSQLite.
type SQLiteOption func(*SQLite)

// WithWatchInterval sets how often the watcher polls for external writes.
func WithWatchInterval(d time.Duration) SQLiteOption {
	return func(s *SQLite) {
		if d > 0 {
			s.watchInterval = d
		}
	}
}

// OpenSQLite opens (creating if needed) the store at path and starts the
// external-change watcher. Close stops the watcher and the database.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("kvstore: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("kvstore: create dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: schema: %w", err)
	}

	s := &SQLite{
		db:            db,
		origin:        uuid.NewString(),
		watchInterval: defaultWatchInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Everything already on disk counts as seen.
	if err := db.QueryRow(`SELECT COALESCE(MAX(rev), 0) FROM kv`).Scan(&s.lastRev); err != nil {
		db.Close()
		return nil, fmt.Errorf("kvstore: read revision: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.watch(ctx)

	appLog.Debug("kvstore opened", "path", path, "origin", s.origin, "rev", s.lastRev)
	return s, nil
}

func (s *SQLite) Get(key string) (string, error) {
	var v sql.NullString
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !v.Valid) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return v.String, nil
}

func (s *SQLite) Set(key, value string) error {
	return s.put(key, sql.NullString{String: value, Valid: true})
}

func (s *SQLite) Remove(key string) error {
	return s.put(key, sql.NullString{})
}

func (s *SQLite) put(key string, value sql.NullString) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("kvstore: begin: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(rev), 0) + 1 FROM kv`).Scan(&rev); err != nil {
		return fmt.Errorf("kvstore: next revision: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO kv (key, value, rev, origin) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev, origin = excluded.origin`,
		key, value, rev, s.origin)
	if err != nil {
		return fmt.Errorf("kvstore: write %q: %w", key, err)
	}
	return tx.Commit()
}

func (s *SQLite) Subscribe(key string, fn func(string)) func() {
	return s.subs.add(key, fn)
}

func (s *SQLite) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.db.Close()
}

func (s *SQLite) watch(ctx context.Context) {
	defer s.wg.Done()

	conn, err := s.db.Conn(ctx)
	if err != nil {
		appLog.Error("kvstore watcher: acquire connection failed", err)
		return
	}
	defer conn.Close()

	var lastVersion int64 = -1
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// data_version only moves when another connection commits, which
		// keeps the idle cost of the watcher to a single pragma.
		var version int64
		if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&version); err != nil {
			if ctx.Err() == nil {
				appLog.Error("kvstore watcher: data_version failed", err)
			}
			continue
		}
		if version == lastVersion {
			continue
		}
		lastVersion = version

		changed, err := s.changedSince(ctx, conn)
		if err != nil {
			if ctx.Err() == nil {
				appLog.Error("kvstore watcher: scan failed", err)
			}
			continue
		}
		for _, key := range changed {
			appLog.Debug("kvstore external change", "key", key)
			s.subs.notify(key)
		}
	}
}

// changedSince returns keys written by other origins after lastRev and
// advances lastRev past every row it saw, including this process's own.
func (s *SQLite) changedSince(ctx context.Context, conn *sql.Conn) ([]string, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT key, rev, origin FROM kv WHERE rev > ? ORDER BY rev`, s.lastRev)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changed []string
	for rows.Next() {
		var (
			key    string
			rev    int64
			origin string
		)
		if err := rows.Scan(&key, &rev, &origin); err != nil {
			return nil, err
		}
		if rev > s.lastRev {
			s.lastRev = rev
		}
		if origin != s.origin {
			changed = append(changed, key)
		}
	}
	return changed, rows.Err()
}
