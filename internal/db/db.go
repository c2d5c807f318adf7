package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/textual/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the journal database file inside the base directory.
const FileName = "textual.db"

// FilesDir is the subdirectory of the base directory that file inputs and
// outputs default to.
const FilesDir = "files"

// migrations holds one schema step per user_version; step i moves the
// journal from version i to i+1. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
	  id           TEXT PRIMARY KEY,
	  kind         TEXT NOT NULL,
	  source       TEXT,
	  fragments    INTEGER NOT NULL,
	  group_count  INTEGER NOT NULL,
	  replacements INTEGER NOT NULL,
	  usage        INTEGER NOT NULL,
	  labels_json  TEXT,
	  created_at   INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_kind_created ON runs(kind, created_at DESC);`,
}

// SchemaVersion is the user_version a fully migrated journal carries.
var SchemaVersion = len(migrations)

// Init opens the run journal under baseDir, creating the directory layout
// and applying pending migrations. Tests pass t.TempDir() as baseDir.
func Init(baseDir string) (*sql.DB, error) {
	for _, dir := range []string{baseDir, filepath.Join(baseDir, FilesDir)} {
		if err := privateDir(dir); err != nil {
			return nil, err
		}
	}

	path := filepath.Join(baseDir, FileName)
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := checkJournalMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(path, 0600)
	return db, nil
}

// privateDir creates dir (owner-only) if it does not exist.
func privateDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	// MkdirAll leaves existing directories alone and is subject to umask.
	_ = os.Chmod(dir, 0700)
	return nil
}

// ConfigurePool applies db_max_open_conns and db_max_idle_conns when set.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if n := cfg.DBMaxOpenConns; n > 0 {
		db.SetMaxOpenConns(n)
	}
	if n := cfg.DBMaxIdleConns; n > 0 {
		db.SetMaxIdleConns(n)
	}
}

// migrate runs every step past the stored user_version, each in its own
// transaction together with the version bump.
func migrate(db *sql.DB) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", current, len(migrations))
	}

	for v := current; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if err := setSchemaVersion(tx, v+1); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", v+1, err)
		}
	}
	return nil
}

func checkJournalMode(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", mode)
	}
	return nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read user_version: %w", err)
	}
	return v, nil
}

func setSchemaVersion(e execer, v int) error {
	// PRAGMA does not accept bound parameters.
	if _, err := e.Exec(fmt.Sprintf("PRAGMA user_version=%d", v)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
