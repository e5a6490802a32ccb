package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when no story exists for a requested id.
var ErrNotFound = errors.New("story not found")

type DB struct {
	*sql.DB
}

// New opens (creating if needed) the SQLite database under dir and
// ensures the schema exists.
func New(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	path := filepath.Join(dir, "stories.db")
	sqldb, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqldb.Ping(); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{sqldb}
	if err := db.initSchema(); err != nil {
		sqldb.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stories (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			title TEXT NOT NULL,
			num_episodes INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			story_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			text TEXT NOT NULL,
			image_url TEXT NOT NULL,
			image_prompt TEXT,
			FOREIGN KEY (story_id) REFERENCES stories(id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}

	return nil
}
