package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/RRCFeeds/internal/cache"
	"github.com/TobiSchelling/RRCFeeds/internal/config"
	"github.com/TobiSchelling/RRCFeeds/internal/database"
	"github.com/TobiSchelling/RRCFeeds/internal/pipeline"
	"github.com/TobiSchelling/RRCFeeds/internal/scrape"
	"github.com/TobiSchelling/RRCFeeds/internal/upload"
)

// state holds the open state stores and the run lock.
type state struct {
	lock     *flock.Flock
	shows    *database.DB
	podcasts *database.DB
	hashes   *database.DB
	opened   map[string]*database.DB
}

// openState takes the run lock and opens the configured stores. Stores whose
// targets are equal share one connection.
func openState(cfg *config.Config, logger hclog.Logger) (*state, error) {
	st := &state{opened: make(map[string]*database.DB)}

	if cfg.Cache.DatabaseURL == "" {
		if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		st.lock = flock.New(cfg.LockPath())
		ok, err := st.lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("another rrcfeeds run holds %s", cfg.LockPath())
		}
	}

	open := func(name string) (*database.DB, error) {
		target := cfg.Cache.DatabaseURL
		if target == "" {
			target = cfg.StatePath(name)
		}
		if db, ok := st.opened[target]; ok {
			return db, nil
		}
		db, err := database.Open(target, logger)
		if err != nil {
			return nil, err
		}
		logger.Debug("state store opened", "target", db.Path())
		st.opened[target] = db
		return db, nil
	}

	var err error
	if st.hashes, err = open(cfg.Cache.FileHashes); err != nil {
		st.Close()
		return nil, err
	}
	if cfg.Cache.Enabled {
		if st.shows, err = open(cfg.Cache.FileShows); err != nil {
			st.Close()
			return nil, err
		}
		if st.podcasts, err = open(cfg.Cache.FilePodcasts); err != nil {
			st.Close()
			return nil, err
		}
	}
	return st, nil
}

// deps wires the stores into pipeline dependencies.
func (st *state) deps(cfg *config.Config, dryRun bool, fetcher scrape.Fetcher, logger hclog.Logger) (pipeline.Deps, error) {
	var up upload.Uploader = upload.DryRun{}
	if !dryRun {
		var err error
		if up, err = upload.New(cfg.Upload); err != nil {
			return pipeline.Deps{}, err
		}
	}

	d := pipeline.Deps{
		Fetcher:  fetcher,
		Records:  st.hashes,
		Uploader: up,
		Logger:   logger,
	}
	if st.shows != nil {
		d.Episodes = cache.NewEpisodeCache(st.shows, logger)
	}
	if st.podcasts != nil {
		d.Snapshots = cache.NewSnapshotStore(st.podcasts, logger)
	}
	return d, nil
}

func (st *state) Close() error {
	var errs []error
	for _, db := range st.opened {
		errs = append(errs, db.Close())
	}
	if st.lock != nil {
		errs = append(errs, st.lock.Unlock())
	}
	return errors.Join(errs...)
}
