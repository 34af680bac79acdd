package database

import (
	"database/sql"
	"fmt"
)

// schemaVersion reads the applied migration version. SQLite keeps it in
// PRAGMA user_version, postgres in a one-row schema_version table.
func (db *DB) schemaVersion() (int, error) {
	if db.dialect == dialectSQLite {
		return getSchemaVersion(db.conn)
	}

	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("creating schema_version: %w", err)
	}
	var version sql.NullInt64
	if err := db.conn.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(version.Int64), nil
}

func (db *DB) setSchemaVersion(version int) error {
	if db.dialect == dialectSQLite {
		// Set user_version outside the transaction (modernc/sqlite requirement).
		_, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
		return err
	}
	if _, err := db.conn.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := db.conn.Exec(db.rebind("INSERT INTO schema_version (version) VALUES (?)"), version)
	return err
}

// getSchemaVersion reads PRAGMA user_version from a SQLite database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// migrate brings the database schema up to the latest version.
func (db *DB) migrate() error {
	current, err := db.schemaVersion()
	if err != nil {
		return err
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		db.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// Safe: if we crash here, the idempotent DDL lets the migration re-run.
		if err := db.setSchemaVersion(m.Version); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
