package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Theme documents
	CREATE TABLE IF NOT EXISTS theme_documents (
		name TEXT PRIMARY KEY,
		format TEXT NOT NULL DEFAULT 'json',
		document TEXT NOT NULL,
		is_system INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_theme_documents_system ON theme_documents(is_system);
	`

	_, err := db.Exec(schema)
	return err
}
