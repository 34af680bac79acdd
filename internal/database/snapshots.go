package database

import (
	"fmt"
	"time"
)

// GetFeedSnapshots returns all stored feed snapshots ordered by name.
func (db *DB) GetFeedSnapshots() ([]FeedSnapshot, error) {
	rows, err := db.conn.Query("SELECT name, data, updated_at FROM feed_snapshots ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FeedSnapshot
	for rows.Next() {
		var s FeedSnapshot
		if err := rows.Scan(&s.Name, &s.Data, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceFeedSnapshots swaps the stored snapshot set for snaps.
func (db *DB) ReplaceFeedSnapshots(snaps []FeedSnapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM feed_snapshots"); err != nil {
		return fmt.Errorf("clearing snapshots: %w", err)
	}

	stmt, err := tx.Prepare(db.rebind("INSERT INTO feed_snapshots (name, data, updated_at) VALUES (?, ?, ?)"))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range snaps {
		if _, err := stmt.Exec(s.Name, s.Data, now); err != nil {
			return fmt.Errorf("saving snapshot %s: %w", s.Name, err)
		}
	}
	return tx.Commit()
}
