package feed

import (
	"strings"
	"time"
)

// ShowFacts is what a show page says about the show.
type ShowFacts struct {
	URL         string
	Title       string
	Author      string
	Program     string
	Description string
	Category    string
	EpisodeURLs []string
}

// FeedDescription joins author, program and description, dropping empty parts.
func (s ShowFacts) FeedDescription() string {
	var parts []string
	for _, p := range []string{s.Author, s.Program, s.Description} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// EpisodeFacts is what an episode page says about one episode. SourceURL is
// the episode page and the cache key.
type EpisodeFacts struct {
	ShowURL   string
	Title     string
	Published time.Time
	Content   string
	MediaURL  string
	MediaType string
	SourceURL string
}

// Episode converts the facts into a feed item titled title.
func (e EpisodeFacts) Episode(title string) Episode {
	return Episode{
		Title:     title,
		Summary:   e.Content,
		MediaURL:  e.MediaURL,
		MediaType: e.MediaType,
		SourceURL: e.SourceURL,
		Published: e.Published,
	}
}
