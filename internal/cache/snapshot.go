package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/RRCFeeds/internal/database"
	"github.com/TobiSchelling/RRCFeeds/internal/feed"
	"github.com/TobiSchelling/RRCFeeds/internal/logging"
)

// SnapshotStore keeps the assembled feeds between runs, one record per feed.
type SnapshotStore struct {
	db     *database.DB
	logger hclog.Logger
}

// NewSnapshotStore creates a snapshot store backed by db.
func NewSnapshotStore(db *database.DB, logger hclog.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logging.OrNull(logger).Named("snapshot")}
}

// Load returns the stored feeds. Records that fail to decode are skipped
// with a warning; the error is only returned if the store itself fails.
func (s *SnapshotStore) Load() ([]*feed.Feed, error) {
	snaps, err := s.db.GetFeedSnapshots()
	if errors.Is(err, database.ErrUnreadable) {
		return nil, &CorruptError{Key: "feed_snapshots", Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("loading feed snapshots: %w", err)
	}

	feeds := make([]*feed.Feed, 0, len(snaps))
	for _, snap := range snaps {
		var f feed.Feed
		if err := json.Unmarshal([]byte(snap.Data), &f); err != nil {
			s.logger.Warn("dropping unreadable feed snapshot", "feed", snap.Name,
				"error", &CorruptError{Key: snap.Name, Err: err})
			continue
		}
		if f.Name == "" {
			f.Name = snap.Name
		}
		feeds = append(feeds, &f)
	}
	s.logger.Debug("loaded feed snapshots", "count", len(feeds))
	return feeds, nil
}

// Save replaces the stored snapshot with feeds.
func (s *SnapshotStore) Save(feeds []*feed.Feed) error {
	snaps := make([]database.FeedSnapshot, 0, len(feeds))
	for _, f := range feeds {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encoding feed %s: %w", f.Name, err)
		}
		snaps = append(snaps, database.FeedSnapshot{Name: f.Name, Data: string(data)})
	}
	if err := s.db.ReplaceFeedSnapshots(snaps); err != nil {
		return fmt.Errorf("saving feed snapshots: %w", err)
	}
	s.logger.Info("saved feed snapshots", "count", len(snaps))
	return nil
}
