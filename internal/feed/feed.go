// Package feed holds the podcast feed entities and their RSS wire format.
package feed

import (
	"strings"
	"time"

	"github.com/TobiSchelling/RRCFeeds/internal/slug"
)

// Episode is one item of a feed.
type Episode struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	MediaURL  string    `json:"media_url"`
	MediaType string    `json:"media_type"`
	SourceURL string    `json:"source_url"`
	Published time.Time `json:"published"`
}

// Feed is a podcast channel. A combo feed aggregates episodes of several
// shows; Members lists their website URLs.
type Feed struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Author      string    `json:"author,omitempty"`
	Website     string    `json:"website"`
	Category    string    `json:"category,omitempty"`
	Explicit    bool      `json:"explicit"`
	Members     []string  `json:"members,omitempty"`
	Episodes    []Episode `json:"episodes"`
}

// IsCombo reports whether the feed aggregates other shows.
func (f *Feed) IsCombo() bool {
	return len(f.Members) > 0
}

// HasEpisode reports whether an episode with the given title exists.
func (f *Feed) HasEpisode(title string) bool {
	for _, e := range f.Episodes {
		if e.Title == title {
			return true
		}
	}
	return false
}

// HasMember reports whether website is one of the combo's source shows.
func (f *Feed) HasMember(website string) bool {
	for _, m := range f.Members {
		if sameURL(m, website) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to another goroutine.
func (f *Feed) Clone() *Feed {
	c := *f
	c.Members = append([]string(nil), f.Members...)
	c.Episodes = append([]Episode(nil), f.Episodes...)
	return &c
}

// Filename is the published file name, e.g. "Emisiuni-Texte-si-pretexte.xml".
func (f *Feed) Filename() string {
	var b strings.Builder
	if c := slug.Capitalize(slug.Make(f.Category)); c != "" {
		b.WriteString(c)
		b.WriteByte('-')
	}
	name := slug.Capitalize(slug.Make(f.Name))
	if name == "" {
		name = "Feed"
	}
	b.WriteString(name)
	b.WriteString(".xml")
	return b.String()
}

// Path joins folder and the feed file name.
func (f *Feed) Path(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return f.Filename()
	}
	return folder + "/" + f.Filename()
}

// NormalizeURL drops a trailing slash so show URLs compare equal regardless
// of how they were linked.
func NormalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

func sameURL(a, b string) bool {
	return NormalizeURL(a) == NormalizeURL(b)
}
