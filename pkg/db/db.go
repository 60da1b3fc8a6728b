package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDBName is the history file created next to the mrwc binary.
const DefaultDBName = "mrwc-history.db"

// schemaVersion is stored in PRAGMA user_version. Bump it together with
// schema and teach migrate how to get there.
const schemaVersion = 1

// historyTables must all exist for the history to be usable.
var historyTables = []string{"jobs", "job_partitions", "job_transitions"}

// ErrNewerSchema is returned for a history written by a newer mrwc.
var ErrNewerSchema = errors.New("job history was written by a newer version of mrwc")

// DB is the job history: one row per run plus its partitions and state
// transitions.
type DB struct {
	*sql.DB
	path string
}

// openDB opens the SQLite file at dbPath. The pragmas are part of the DSN so
// every pooled connection enforces foreign keys and waits for concurrent
// mrwc processes recording their jobs.
func openDB(dbPath string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return sqlDB, nil
}

// DefaultPath returns the history location next to the binary.
func DefaultPath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(execPath), DefaultDBName), nil
}

// Open opens the job history at dbPath, creating or upgrading its tables.
// An empty path means DefaultPath.
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		var err error
		if dbPath, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	sqlDB, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}
	db := &DB{DB: sqlDB, path: dbPath}
	if err := db.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("job history %s: %w", dbPath, err)
	}
	return db, nil
}

// migrate brings the history to schemaVersion. Missing tables are created,
// so a history whose transition log was dropped is repaired on open.
func (db *DB) migrate() error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("%w (schema %d, supported %d)", ErrNewerSchema, version, schemaVersion)
	}

	missing, err := db.missingTables()
	if err != nil {
		return err
	}
	if version == schemaVersion && len(missing) == 0 {
		return nil
	}
	return db.InitSchema()
}

func (db *DB) missingTables() ([]string, error) {
	var missing []string
	for _, table := range historyTables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			missing = append(missing, table)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
	}
	return missing, nil
}

// Path returns the history file path.
func (db *DB) Path() string {
	return db.path
}

// InitSchema creates any missing history tables and records schemaVersion.
func (db *DB) InitSchema() error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history tables: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
