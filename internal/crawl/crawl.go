// Package crawl runs the two crawl phases: show discovery from the show list
// pages, then episode discovery per show.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/RRCFeeds/internal/assemble"
	"github.com/TobiSchelling/RRCFeeds/internal/cache"
	"github.com/TobiSchelling/RRCFeeds/internal/feed"
	"github.com/TobiSchelling/RRCFeeds/internal/logging"
	"github.com/TobiSchelling/RRCFeeds/internal/scrape"
)

// ErrNoShowLists is returned when every configured show list page failed.
var ErrNoShowLists = errors.New("no show list page could be fetched")

// EpisodeStore is the per-show seen-episode cache.
type EpisodeStore interface {
	Load(showKey string) (cache.URLSet, error)
	Save(showKey string, discovered []string) error
}

// Options tune one crawl.
type Options struct {
	MaxEpisodes int
	MinEpisodes int
	Concurrency int
	// DryRun fetches and assembles but never writes the episode cache.
	DryRun bool
}

// Result holds crawl statistics.
type Result struct {
	ShowLists       int
	ShowListsFailed int
	Shows           int
	ShowsSkipped    int
	ShowsFailed     int
	NewEpisodes     int
	Added           int
	NoMedia         int
	EpisodesFailed  int
}

func (r *Result) String() string {
	return fmt.Sprintf("%d shows (%d skipped, %d failed), %d new episodes, %d added to feeds, %d without audio, %d failed",
		r.Shows, r.ShowsSkipped, r.ShowsFailed, r.NewEpisodes, r.Added, r.NoMedia, r.EpisodesFailed)
}

// Crawler owns the feed assembler and episode cache for one run.
type Crawler struct {
	fetcher   scrape.Fetcher
	assembler *assemble.Assembler
	episodes  EpisodeStore
	opts      Options
	logger    hclog.Logger
	now       func() time.Time

	sem chan struct{}
	mu  sync.Mutex
	res Result
}

// New creates a crawler. episodes may be nil when caching is disabled, in
// which case every discovered episode is fetched.
func New(fetcher scrape.Fetcher, assembler *assemble.Assembler, episodes EpisodeStore, opts Options, logger hclog.Logger) *Crawler {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Crawler{
		fetcher:   fetcher,
		assembler: assembler,
		episodes:  episodes,
		opts:      opts,
		logger:    logging.OrNull(logger).Named("crawl"),
		now:       time.Now,
		sem:       make(chan struct{}, opts.Concurrency),
	}
}

// Result returns the statistics gathered so far.
func (c *Crawler) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res
}

func (c *Crawler) count(f func(r *Result)) {
	c.mu.Lock()
	f(&c.res)
	c.mu.Unlock()
}

// fetch bounds the number of concurrent page requests.
func (c *Crawler) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()
	return c.fetcher.Fetch(ctx, pageURL)
}

// DiscoverShows fetches every show list page and returns the linked shows.
// A failing page is logged and skipped; only the failure of all of them is
// an error.
func (c *Crawler) DiscoverShows(ctx context.Context, showLists []string) ([]scrape.ShowLink, error) {
	if len(showLists) == 0 {
		return nil, nil
	}

	perPage := make([][]scrape.ShowLink, len(showLists))
	g, gctx := errgroup.WithContext(ctx)
	for i, listURL := range showLists {
		g.Go(func() error {
			body, err := c.fetch(gctx, listURL)
			if err == nil {
				perPage[i], err = scrape.ExtractShowList(body, listURL)
			}
			if err != nil {
				c.logger.Warn("show list skipped", "url", listURL, "error", err)
				c.count(func(r *Result) { r.ShowListsFailed++ })
				return nil
			}
			c.logger.Info("show list scraped", "url", listURL, "shows", len(perPage[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.count(func(r *Result) { r.ShowLists = len(showLists) })
	if res := c.Result(); res.ShowListsFailed == len(showLists) {
		return nil, ErrNoShowLists
	}

	var shows []scrape.ShowLink
	for _, links := range perPage {
		shows = append(shows, links...)
	}
	return shows, nil
}

// Frontier merges discovered shows with the statically configured show URLs
// and every combo member URL. Duplicates are collapsed on the normalized URL;
// the first occurrence wins, so discovered shows keep their category.
func Frontier(discovered []scrape.ShowLink, static []string, combos []assemble.Combo) []scrape.ShowLink {
	var out []scrape.ShowLink
	seen := make(map[string]bool)
	add := func(s scrape.ShowLink) {
		key := feed.NormalizeURL(s.URL)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, s := range discovered {
		add(s)
	}
	for _, u := range static {
		add(scrape.ShowLink{URL: u})
	}
	for _, combo := range combos {
		for _, u := range combo.URLs {
			add(scrape.ShowLink{URL: u})
		}
	}
	return out
}

// DiscoverEpisodes crawls every show of the frontier. Per-show failures are
// logged and counted; the returned error is only set when ctx is done.
func (c *Crawler) DiscoverEpisodes(ctx context.Context, shows []scrape.ShowLink) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, show := range shows {
		g.Go(func() error {
			c.crawlShow(gctx, show)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Crawler) crawlShow(ctx context.Context, show scrape.ShowLink) {
	c.count(func(r *Result) { r.Shows++ })
	log := c.logger.With("show", show.URL)

	body, err := c.fetch(ctx, show.URL)
	if err != nil {
		log.Warn("show skipped", "error", err)
		c.count(func(r *Result) { r.ShowsFailed++ })
		return
	}
	facts, err := scrape.ExtractShow(body, show.URL)
	if err != nil {
		log.Warn("show skipped", "error", err)
		c.count(func(r *Result) { r.ShowsFailed++ })
		return
	}
	facts.Category = show.Category

	discovered := facts.EpisodeURLs
	if len(discovered) < c.opts.MinEpisodes {
		log.Info("show skipped, not enough episodes", "episodes", len(discovered), "min", c.opts.MinEpisodes)
		c.count(func(r *Result) { r.ShowsSkipped++ })
		return
	}
	if c.opts.MaxEpisodes > 0 && len(discovered) > c.opts.MaxEpisodes {
		discovered = discovered[:c.opts.MaxEpisodes]
	}

	if err := c.assembler.UpsertShow(facts); err != nil {
		log.Error("show not assembled", "error", err)
		c.count(func(r *Result) { r.ShowsFailed++ })
		return
	}

	key := cache.Key(facts.Title)
	seen := cache.URLSet{}
	if c.episodes != nil {
		seen, err = c.episodes.Load(key)
		if err != nil {
			var corrupt *cache.CorruptError
			if !errors.As(err, &corrupt) {
				log.Warn("episode cache unavailable", "error", err)
			} else {
				log.Warn("episode cache unreadable, treating as empty", "error", err)
			}
			seen = cache.URLSet{}
		}
	}

	fresh := cache.Diff(discovered, seen)
	c.count(func(r *Result) { r.NewEpisodes += len(fresh) })
	log.Info("show scraped", "title", facts.Title, "episodes", len(discovered), "new", len(fresh))

	failed := c.crawlEpisodes(ctx, show.URL, fresh)

	if c.episodes == nil || c.opts.DryRun || ctx.Err() != nil {
		return
	}
	keep := discovered
	if len(failed) > 0 {
		keep = make([]string, 0, len(discovered))
		for _, u := range discovered {
			if !failed.Has(u) {
				keep = append(keep, u)
			}
		}
	}
	if err := c.episodes.Save(key, keep); err != nil {
		log.Error("episode cache not saved", "error", err)
	}
}

// crawlEpisodes fetches and routes the new episodes of one show. It returns
// the URLs whose page could not be fetched, so the next run tries them again.
func (c *Crawler) crawlEpisodes(ctx context.Context, showURL string, urls []string) cache.URLSet {
	var mu sync.Mutex
	failed := cache.URLSet{}

	var wg sync.WaitGroup
	for _, epURL := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.crawlEpisode(ctx, showURL, epURL) {
				mu.Lock()
				failed[epURL] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return failed
}

// crawlEpisode reports false only when the page could not be fetched.
func (c *Crawler) crawlEpisode(ctx context.Context, showURL, epURL string) bool {
	log := c.logger.With("episode", epURL)

	body, err := c.fetch(ctx, epURL)
	if err != nil {
		log.Warn("episode skipped", "error", err)
		c.count(func(r *Result) { r.EpisodesFailed++ })
		return false
	}

	ep, err := scrape.ExtractEpisode(body, epURL, showURL, c.now)
	switch {
	case errors.Is(err, scrape.ErrNoMedia):
		log.Warn("episode skipped, no audio found")
		c.count(func(r *Result) { r.NoMedia++ })
		return true
	case err != nil:
		log.Warn("episode skipped", "error", err)
		c.count(func(r *Result) { r.EpisodesFailed++ })
		return true
	}

	n, err := c.assembler.AddEpisode(ep)
	if err != nil {
		log.Error("episode dropped", "error", err)
		return true
	}
	c.count(func(r *Result) { r.Added += n })
	log.Debug("episode added", "title", ep.Title, "feeds", n)
	return true
}
