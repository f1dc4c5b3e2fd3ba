package sqlite

import (
	"database/sql"
	"fmt"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database at path with foreign keys enabled and
// creates the schema if it doesn't exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		course_id INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		fee REAL NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0,
		admin TEXT NOT NULL DEFAULT '',
		number_of_modules INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("failed to create courses table: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS modules (
		id TEXT PRIMARY KEY,
		module_id INTEGER NOT NULL DEFAULT 0,
		course_id TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		download_url TEXT NOT NULL DEFAULT '',
		youtube_video_id TEXT NOT NULL DEFAULT '',
		zip_path TEXT NOT NULL DEFAULT '',
		download_state TEXT NOT NULL DEFAULT 'idle',
		download_progress REAL NOT NULL DEFAULT 0,
		local_path TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		tracking_updated_at DATETIME
	)`); err != nil {
		return nil, fmt.Errorf("failed to create modules table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_modules_course_id ON modules(course_id)`); err != nil {
		return nil, fmt.Errorf("failed to create modules index: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_modules_download_state ON modules(download_state)`); err != nil {
		return nil, fmt.Errorf("failed to create tracking index: %w", err)
	}

	return db, nil
}
