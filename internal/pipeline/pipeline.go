package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/RRCFeeds/internal/assemble"
	"github.com/TobiSchelling/RRCFeeds/internal/config"
	"github.com/TobiSchelling/RRCFeeds/internal/crawl"
	"github.com/TobiSchelling/RRCFeeds/internal/feed"
	"github.com/TobiSchelling/RRCFeeds/internal/logging"
	"github.com/TobiSchelling/RRCFeeds/internal/publish"
	"github.com/TobiSchelling/RRCFeeds/internal/scrape"
	"github.com/TobiSchelling/RRCFeeds/internal/upload"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
}

// Err returns the first step error.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

func (r *Result) add(s StepResult) bool {
	r.Steps = append(r.Steps, s)
	return s.Err == nil
}

// SnapshotStore keeps assembled feeds between runs.
type SnapshotStore interface {
	Load() ([]*feed.Feed, error)
	Save([]*feed.Feed) error
}

// Deps are the state stores and collaborators of a run. Episodes and
// Snapshots are nil when caching is disabled.
type Deps struct {
	Fetcher   scrape.Fetcher
	Episodes  crawl.EpisodeStore
	Snapshots SnapshotStore
	Records   publish.RecordStore
	Uploader  upload.Uploader
	Logger    hclog.Logger
}

// Pipeline runs discover → crawl → snapshot → publish.
type Pipeline struct {
	cfg         *config.Config
	deps        Deps
	dryRun      bool
	concurrency int
	logger      hclog.Logger
}

// New creates a pipeline. A dry run fetches and assembles but writes no
// state and uploads nothing.
func New(cfg *config.Config, deps Deps, dryRun bool) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		deps:        deps,
		dryRun:      dryRun,
		concurrency: cfg.Concurrency(),
		logger:      logging.OrNull(deps.Logger),
	}
}

// SetConcurrency overrides the configured fetch concurrency.
func (p *Pipeline) SetConcurrency(n int) {
	if n > 0 {
		p.concurrency = n
	}
}

// Run executes both crawl phases and publishes the result.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}
	shows, step := p.runDiscover(ctx)
	if !r.add(step) {
		return r
	}
	p.crawlAndPublish(ctx, r, shows)
	return r
}

// Discover runs only the show discovery phase.
func (p *Pipeline) Discover(ctx context.Context) ([]scrape.ShowLink, *Result) {
	r := &Result{}
	shows, step := p.runDiscover(ctx)
	r.add(step)
	return shows, r
}

// Crawl runs the episode phase over previously discovered shows and
// publishes the result.
func (p *Pipeline) Crawl(ctx context.Context, discovered []scrape.ShowLink) *Result {
	r := &Result{}
	p.crawlAndPublish(ctx, r, discovered)
	return r
}

// Publish republishes the stored feed snapshot without crawling.
func (p *Pipeline) Publish(ctx context.Context) *Result {
	r := &Result{}
	if p.deps.Snapshots == nil {
		r.add(StepResult{Name: "Publish", Err: errors.New("caching is disabled, no stored feeds to publish")})
		return r
	}
	feeds, err := p.deps.Snapshots.Load()
	if err != nil {
		r.add(StepResult{Name: "Restore", Err: err})
		return r
	}
	r.add(StepResult{Name: "Restore", Summary: fmt.Sprintf("Loaded %d stored feeds", len(feeds))})
	r.add(p.runPublish(ctx, feeds))
	return r
}

func (p *Pipeline) crawlAndPublish(ctx context.Context, r *Result, discovered []scrape.ShowLink) {
	assembler := assemble.New(combos(p.cfg), p.deps.Logger)
	if !r.add(p.runRestore(assembler)) {
		return
	}

	step := p.runCrawl(ctx, assembler, discovered)
	if !r.add(step) {
		return
	}

	feeds := assembler.Snapshot()
	r.add(p.runSnapshot(feeds))
	r.add(p.runPublish(ctx, feeds))
}

func (p *Pipeline) runDiscover(ctx context.Context) ([]scrape.ShowLink, StepResult) {
	p.logger.Info("step 1/4: discovering shows", "showlists", len(p.cfg.Shows.ShowLists))
	c := p.newCrawler(assemble.New(nil, p.deps.Logger))
	shows, err := c.DiscoverShows(ctx, p.cfg.Shows.ShowLists)
	if err != nil {
		return nil, StepResult{Name: "Discover", Err: err}
	}
	res := c.Result()
	return shows, StepResult{
		Name:    "Discover",
		Summary: fmt.Sprintf("Found %d shows on %d show lists (%d failed)", len(shows), res.ShowLists, res.ShowListsFailed),
	}
}

func (p *Pipeline) runRestore(a *assemble.Assembler) StepResult {
	if p.deps.Snapshots == nil {
		return StepResult{Name: "Restore", Summary: "Caching disabled, starting from empty feeds"}
	}
	feeds, err := p.deps.Snapshots.Load()
	if err != nil {
		return StepResult{Name: "Restore", Err: err}
	}
	a.Restore(feeds)
	return StepResult{Name: "Restore", Summary: fmt.Sprintf("Restored %d feeds", len(feeds))}
}

func (p *Pipeline) runCrawl(ctx context.Context, a *assemble.Assembler, discovered []scrape.ShowLink) StepResult {
	frontier := crawl.Frontier(discovered, p.cfg.Shows.Shows, combos(p.cfg))
	p.logger.Info("step 2/4: crawling shows", "shows", len(frontier))

	c := p.newCrawler(a)
	if err := c.DiscoverEpisodes(ctx, frontier); err != nil {
		return StepResult{Name: "Crawl", Err: err}
	}
	res := c.Result()
	return StepResult{Name: "Crawl", Summary: res.String()}
}

func (p *Pipeline) runSnapshot(feeds []*feed.Feed) StepResult {
	switch {
	case p.dryRun:
		return StepResult{Name: "Snapshot", Summary: fmt.Sprintf("[dry-run] Would store %d feeds", len(feeds))}
	case p.deps.Snapshots == nil:
		return StepResult{Name: "Snapshot", Summary: "Caching disabled, feeds not stored"}
	}
	p.logger.Info("step 3/4: storing feeds", "feeds", len(feeds))
	if err := p.deps.Snapshots.Save(feeds); err != nil {
		return StepResult{Name: "Snapshot", Err: err}
	}
	return StepResult{Name: "Snapshot", Summary: fmt.Sprintf("Stored %d feeds", len(feeds))}
}

func (p *Pipeline) runPublish(ctx context.Context, feeds []*feed.Feed) StepResult {
	pub := publish.New(p.deps.Uploader, p.deps.Records, p.cfg.Upload.Folder, p.deps.Logger)
	if p.dryRun {
		paths, err := pub.Changed(feeds)
		if err != nil {
			return StepResult{Name: "Publish", Err: err}
		}
		for _, path := range paths {
			p.logger.Info("would upload", "path", path)
		}
		return StepResult{
			Name:    "Publish",
			Summary: fmt.Sprintf("[dry-run] %d of %d feeds would be uploaded", len(paths), len(feeds)),
		}
	}

	p.logger.Info("step 4/4: publishing feeds", "feeds", len(feeds))
	res, err := pub.PublishAll(ctx, feeds)
	if err != nil {
		return StepResult{Name: "Publish", Err: err}
	}
	return StepResult{Name: "Publish", Summary: res.String()}
}

func (p *Pipeline) newCrawler(a *assemble.Assembler) *crawl.Crawler {
	return crawl.New(p.deps.Fetcher, a, p.deps.Episodes, crawl.Options{
		MaxEpisodes: p.cfg.Options.MaxEpisodes,
		MinEpisodes: p.cfg.Options.MinEpisodes,
		Concurrency: p.concurrency,
		DryRun:      p.dryRun,
	}, p.deps.Logger)
}

func combos(cfg *config.Config) []assemble.Combo {
	out := make([]assemble.Combo, 0, len(cfg.Shows.Combos))
	for _, c := range cfg.Shows.Combos {
		out = append(out, assemble.Combo{
			Name:        c.Name,
			Description: c.Description,
			Category:    c.Category,
			Website:     c.Website,
			URLs:        c.URLs,
		})
	}
	return out
}
