// Package assemble accumulates show and episode facts into feeds, routing
// every episode into its show's feed and into each combo containing the show.
package assemble

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/RRCFeeds/internal/feed"
	"github.com/TobiSchelling/RRCFeeds/internal/logging"
)

// Combo defines a feed aggregating several source shows.
type Combo struct {
	Name        string
	Description string
	Category    string
	Website     string
	URLs        []string
}

// RoutingError means an episode arrived for a show the assembler has not
// seen yet.
type RoutingError struct {
	ShowURL string
	Title   string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no feed for show %s (episode %q)", e.ShowURL, e.Title)
}

// entry guards one feed. Writers to different feeds never contend.
type entry struct {
	mu   sync.Mutex
	feed *feed.Feed
}

// Assembler is safe for concurrent use.
type Assembler struct {
	mu     sync.RWMutex
	feeds  map[string]*entry // by feed name
	byShow map[string]string // normalized show URL -> direct feed name
	combos []Combo
	logger hclog.Logger
}

// New creates an assembler with a placeholder feed for every combo, so
// episodes can be routed into combos before all member shows are visited.
func New(combos []Combo, logger hclog.Logger) *Assembler {
	a := &Assembler{
		feeds:  make(map[string]*entry),
		byShow: make(map[string]string),
		combos: combos,
		logger: logging.OrNull(logger).Named("assemble"),
	}
	a.ensureCombos()
	return a
}

func (a *Assembler) ensureCombos() {
	for _, c := range a.combos {
		website := c.Website
		if website == "" && len(c.URLs) > 0 {
			website = c.URLs[0]
		}
		members := make([]string, 0, len(c.URLs))
		for _, u := range c.URLs {
			members = append(members, feed.NormalizeURL(u))
		}

		if e, ok := a.feeds[c.Name]; ok {
			e.mu.Lock()
			e.feed.Description = feed.DescriptionHTML(c.Description)
			e.feed.Category = c.Category
			e.feed.Website = website
			e.feed.Members = members
			e.mu.Unlock()
			continue
		}
		a.feeds[c.Name] = &entry{feed: &feed.Feed{
			Name:        c.Name,
			Description: feed.DescriptionHTML(c.Description),
			Category:    c.Category,
			Website:     website,
			Members:     members,
		}}
	}
}

// Restore seeds the assembler with feeds from a previous run. Combos that are
// no longer configured are dropped; configured combos keep their stored
// episodes but take metadata from the configuration.
func (a *Assembler) Restore(feeds []*feed.Feed) {
	a.mu.Lock()
	defer a.mu.Unlock()

	configured := make(map[string]bool, len(a.combos))
	for _, c := range a.combos {
		configured[c.Name] = true
	}

	for _, f := range feeds {
		if f.IsCombo() && !configured[f.Name] {
			a.logger.Info("dropping restored combo no longer configured", "feed", f.Name)
			continue
		}
		a.feeds[f.Name] = &entry{feed: f.Clone()}
		if !f.IsCombo() && f.Website != "" {
			a.byShow[feed.NormalizeURL(f.Website)] = f.Name
		}
	}
	a.ensureCombos()
	a.logger.Debug("restored feeds", "count", len(feeds))
}

// UpsertShow creates the show's feed or refreshes its metadata. An empty
// category keeps the one already known.
func (a *Assembler) UpsertShow(s feed.ShowFacts) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e, ok := a.feeds[s.Title]; ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.feed.IsCombo() {
			return fmt.Errorf("show %s: name %q is taken by a combo feed", s.URL, s.Title)
		}
		e.feed.Description = s.FeedDescription()
		e.feed.Author = s.Author
		e.feed.Website = s.URL
		// Shows reached without their show list carry no category.
		if s.Category != "" {
			e.feed.Category = s.Category
		}
		a.byShow[feed.NormalizeURL(s.URL)] = s.Title
		a.logger.Debug("feed already exists, metadata refreshed", "feed", s.Title)
		return nil
	}

	a.feeds[s.Title] = &entry{feed: &feed.Feed{
		Name:        s.Title,
		Description: s.FeedDescription(),
		Author:      s.Author,
		Website:     s.URL,
		Category:    s.Category,
	}}
	a.byShow[feed.NormalizeURL(s.URL)] = s.Title
	a.logger.Debug("feed created", "feed", s.Title, "url", s.URL)
	return nil
}

// AddEpisode routes an episode into its show's feed and every combo that
// lists the show. Episodes already present (by title) are skipped. It
// returns the number of feeds the episode was appended to.
func (a *Assembler) AddEpisode(ep feed.EpisodeFacts) (int, error) {
	a.mu.RLock()
	name, ok := a.byShow[feed.NormalizeURL(ep.ShowURL)]
	if !ok {
		a.mu.RUnlock()
		return 0, &RoutingError{ShowURL: ep.ShowURL, Title: ep.Title}
	}
	direct := a.feeds[name]
	website := ep.ShowURL
	direct.mu.Lock()
	if direct.feed.Website != "" {
		website = direct.feed.Website
	}
	direct.mu.Unlock()

	var combos []*entry
	for _, e := range a.feeds {
		if e == direct {
			continue
		}
		e.mu.Lock()
		member := e.feed.HasMember(website)
		e.mu.Unlock()
		if member {
			combos = append(combos, e)
		}
	}
	a.mu.RUnlock()

	added := 0
	if a.appendOnce(direct, ep.Episode(ep.Title)) {
		added++
	}
	comboTitle := name + ": " + ep.Title
	for _, e := range combos {
		if a.appendOnce(e, ep.Episode(comboTitle)) {
			added++
		}
	}
	return added, nil
}

func (a *Assembler) appendOnce(e *entry, ep feed.Episode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.feed.HasEpisode(ep.Title) {
		a.logger.Debug("episode already exists", "feed", e.feed.Name, "episode", ep.Title)
		return false
	}
	e.feed.Episodes = append(e.feed.Episodes, ep)
	return true
}

// Feed returns a copy of the named feed.
func (a *Assembler) Feed(name string) (*feed.Feed, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.feeds[name]
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.feed.Clone(), true
}

// Snapshot returns copies of all feeds ordered by name.
func (a *Assembler) Snapshot() []*feed.Feed {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, 0, len(a.feeds))
	for name := range a.feeds {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*feed.Feed, 0, len(names))
	for _, name := range names {
		e := a.feeds[name]
		e.mu.Lock()
		out = append(out, e.feed.Clone())
		e.mu.Unlock()
	}
	return out
}
