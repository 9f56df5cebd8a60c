// Package sqlite stores the evidence index in a single SQLite file.
package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// migrations are applied in order; PRAGMA user_version records how many have run.
var migrations = []string{
	`CREATE TABLE images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		camera TEXT NOT NULL,
		class TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		filepath TEXT NOT NULL,
		filesize INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		object_name TEXT NOT NULL,
		x INTEGER NOT NULL DEFAULT 0,
		y INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0
	);`,

	`CREATE INDEX idx_images_class_timestamp ON images(class, timestamp);
	CREATE INDEX idx_images_camera ON images(camera);
	CREATE INDEX idx_images_timestamp ON images(timestamp);
	CREATE INDEX idx_detections_image_id ON detections(image_id);`,
}

// DB is the evidence index database. Writes are serialized; reads share the lock.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens the index at dbPath, creating the file and its directory when missing,
// and brings the schema up to date.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection keeps the per-connection foreign_keys pragma in force.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	version, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return errors.Errorf("database schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		step := i + 1
		err := db.write(func(tx *sql.Tx) error {
			if _, err := tx.Exec(migrations[i]); err != nil {
				return err
			}
			// PRAGMA does not take bind parameters.
			_, err := tx.Exec("PRAGMA user_version = " + strconv.Itoa(step))
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "failed to apply schema migration %d", step)
		}
	}
	return nil
}

// SchemaVersion returns the number of migrations applied to the database.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.read(func(conn *sql.DB) error {
		return conn.QueryRow("PRAGMA user_version").Scan(&version)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return version, nil
}

// write runs fn in a transaction under the write lock. The transaction is rolled
// back when fn fails.
func (db *DB) write(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// read runs fn under the shared lock.
func (db *DB) read(fn func(conn *sql.DB) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.conn)
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}
