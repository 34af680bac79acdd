// Package cache persists crawl state between runs: the set of episode URLs
// already seen per show, and the assembled feeds.
package cache

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/RRCFeeds/internal/database"
	"github.com/TobiSchelling/RRCFeeds/internal/logging"
	"github.com/TobiSchelling/RRCFeeds/internal/slug"
)

// CorruptError means stored state exists but cannot be read back.
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache entry %q unreadable: %v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// URLSet is a set of episode source URLs.
type URLSet map[string]struct{}

// NewURLSet builds a set from urls.
func NewURLSet(urls ...string) URLSet {
	s := make(URLSet, len(urls))
	for _, u := range urls {
		s[u] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s URLSet) Has(u string) bool {
	_, ok := s[u]
	return ok
}

// Sorted returns the members in lexical order.
func (s URLSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Diff returns the discovered URLs not present in cached, keeping the
// discovered order and dropping repeats.
func Diff(discovered []string, cached URLSet) []string {
	var out []string
	seen := make(URLSet, len(discovered))
	for _, u := range discovered {
		if cached.Has(u) || seen.Has(u) {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// Key derives the storage key for a show from its title.
func Key(showTitle string) string {
	return slug.Make(showTitle)
}

// EpisodeCache stores the seen episode URLs of each show. Entries for
// different shows are independent and safe to use concurrently.
type EpisodeCache struct {
	db     *database.DB
	logger hclog.Logger
}

// NewEpisodeCache creates an episode cache backed by db.
func NewEpisodeCache(db *database.DB, logger hclog.Logger) *EpisodeCache {
	return &EpisodeCache{db: db, logger: logging.OrNull(logger).Named("cache")}
}

// Load returns the URLs saved for showKey. A show never saved yields an
// empty set and no error.
func (c *EpisodeCache) Load(showKey string) (URLSet, error) {
	urls, err := c.db.GetSeenEpisodes(showKey)
	if errors.Is(err, database.ErrUnreadable) {
		return URLSet{}, &CorruptError{Key: showKey, Err: err}
	}
	if err != nil {
		return URLSet{}, fmt.Errorf("loading episode cache for %s: %w", showKey, err)
	}
	c.logger.Debug("loaded episode cache", "show", showKey, "count", len(urls))
	return NewURLSet(urls...), nil
}

// Save replaces the stored set for showKey with discovered. Episodes missing
// from discovered are forgotten.
func (c *EpisodeCache) Save(showKey string, discovered []string) error {
	urls := NewURLSet(discovered...).Sorted()
	if err := c.db.ReplaceSeenEpisodes(showKey, urls); err != nil {
		return fmt.Errorf("saving episode cache for %s: %w", showKey, err)
	}
	c.logger.Debug("saved episode cache", "show", showKey, "count", len(urls))
	return nil
}
