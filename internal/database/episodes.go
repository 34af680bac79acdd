package database

import (
	"fmt"
	"time"
)

// GetSeenEpisodes returns the episode URLs stored for a show.
func (db *DB) GetSeenEpisodes(showKey string) ([]string, error) {
	rows, err := db.conn.Query(
		db.rebind("SELECT url FROM seen_episodes WHERE show_key = ? ORDER BY url"), showKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ReplaceSeenEpisodes overwrites the stored URL set for a show.
func (db *DB) ReplaceSeenEpisodes(showKey string, urls []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(db.rebind("DELETE FROM seen_episodes WHERE show_key = ?"), showKey); err != nil {
		return fmt.Errorf("clearing seen episodes: %w", err)
	}

	stmt, err := tx.Prepare(db.rebind(
		"INSERT INTO seen_episodes (show_key, url) VALUES (?, ?) ON CONFLICT DO NOTHING",
	))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range urls {
		if _, err := stmt.Exec(showKey, u); err != nil {
			return fmt.Errorf("inserting %s: %w", u, err)
		}
	}

	if _, err := tx.Exec(db.rebind(
		`INSERT INTO show_checkpoints (show_key, episode_count, saved_at) VALUES (?, ?, ?)
		ON CONFLICT (show_key) DO UPDATE SET episode_count = excluded.episode_count, saved_at = excluded.saved_at`),
		showKey, len(urls), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("updating checkpoint: %w", err)
	}

	return tx.Commit()
}

// GetShowCheckpoints returns every show with a saved episode cache.
func (db *DB) GetShowCheckpoints() ([]ShowCheckpoint, error) {
	rows, err := db.conn.Query(
		"SELECT show_key, episode_count, saved_at FROM show_checkpoints ORDER BY show_key",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ShowCheckpoint
	for rows.Next() {
		var c ShowCheckpoint
		if err := rows.Scan(&c.ShowKey, &c.EpisodeCount, &c.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
