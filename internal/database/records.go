package database

import "fmt"

// GetPublishRecords returns all publish records keyed by file path.
func (db *DB) GetPublishRecords() (map[string]PublishRecord, error) {
	rows, err := db.conn.Query("SELECT path, fingerprint, published_at FROM publish_records")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make(map[string]PublishRecord)
	for rows.Next() {
		var r PublishRecord
		if err := rows.Scan(&r.Path, &r.Fingerprint, &r.PublishedAt); err != nil {
			return nil, err
		}
		records[r.Path] = r
	}
	return records, rows.Err()
}

// SavePublishRecords upserts the given records in one transaction. Paths not
// present in records are left untouched.
func (db *DB) SavePublishRecords(records map[string]PublishRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(db.rebind(
		`INSERT INTO publish_records (path, fingerprint, published_at) VALUES (?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET fingerprint = excluded.fingerprint, published_at = excluded.published_at`,
	))
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for path, r := range records {
		if _, err := stmt.Exec(path, r.Fingerprint, r.PublishedAt); err != nil {
			return fmt.Errorf("saving record %s: %w", path, err)
		}
	}
	return tx.Commit()
}
