package database

import "database/sql"

// Migration represents a single schema migration step. The DDL must stay
// portable between SQLite and postgres.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE IF NOT EXISTS seen_episodes (
    show_key TEXT NOT NULL,
    url TEXT NOT NULL,
    PRIMARY KEY (show_key, url)
)`,
				`CREATE TABLE IF NOT EXISTS show_checkpoints (
    show_key TEXT PRIMARY KEY,
    episode_count INTEGER NOT NULL DEFAULT 0,
    saved_at TEXT NOT NULL
)`,
				`CREATE TABLE IF NOT EXISTS publish_records (
    path TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    published_at TEXT NOT NULL
)`,
				`CREATE TABLE IF NOT EXISTS feed_snapshots (
    name TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`,
			}
			for _, s := range stmts {
				if _, err := tx.Exec(s); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
