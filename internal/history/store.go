package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// Store is the sqlite-backed ledger. The sync cycle is single-threaded, so
// the store only needs to tolerate concurrent readers; sql.DB's own
// locking covers that.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the history database at path and applies
// the schema. Schema creation is idempotent, so opening an existing store
// is safe.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &StoreError{Op: "open", Err: errors.New("path is required")}
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &StoreError{Op: "open", Err: fmt.Errorf("create db dir: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, &StoreError{Op: "migrate", Err: err}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Contains reports whether the entry was already notified for this feed.
// Read-only: recording happens separately, after a dispatch attempt.
func (s *Store) Contains(ctx context.Context, feedID, entryID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, &StoreError{Op: "contains", Err: errors.New("store is not initialized")}
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM notified WHERE feed_id = ? AND entry_id = ?",
		feedID, entryID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{Op: "contains", Err: err}
	}
	return true, nil
}

// Record marks the entry as notified. Re-recording the same pair is a
// no-op, so a crash-retry duplicate attempt cannot violate the at-most-one
// row invariant.
func (s *Store) Record(ctx context.Context, feedID, entryID string, notifiedAt time.Time) error {
	if s == nil || s.db == nil {
		return &StoreError{Op: "record", Err: errors.New("store is not initialized")}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO notified (feed_id, entry_id, notified_at) VALUES (?, ?, ?)",
		feedID, entryID, formatTime(notifiedAt),
	)
	if err != nil {
		return &StoreError{Op: "record", Err: err}
	}
	return nil
}

// Prune deletes history rows older than retainDays and returns the number
// removed. retainDays <= 0 keeps history forever.
func (s *Store) Prune(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, &StoreError{Op: "prune", Err: errors.New("store is not initialized")}
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM notified WHERE notified_at < ?", cutoff)
	if err != nil {
		return 0, &StoreError{Op: "prune", Err: err}
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Count returns the number of recorded notifications, for doctor output.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, &StoreError{Op: "count", Err: errors.New("store is not initialized")}
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notified").Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return n, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply schema: %w", err)
	}

	var versionStr string
	err = tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&versionStr)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, "INSERT INTO metadata(key, value) VALUES('schema_version', ?)", strconv.Itoa(schemaVersion)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert schema version: %w", err)
		}
		return tx.Commit()
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("read schema version: %w", err)
	}

	version, err := strconv.Atoi(versionStr)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("parse schema version: %w", err)
	}
	if version > schemaVersion {
		_ = tx.Rollback()
		return fmt.Errorf("database schema version %d is newer than supported %d", version, schemaVersion)
	}

	return tx.Commit()
}

// timeLayout is fixed-width (nanoseconds never trimmed, always UTC), so
// lexicographic order on stored values matches chronological order and
// Prune can compare with SQL string <.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
