package feed

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	generator       = "rrcfeeds"
	itunesNamespace = "http://www.itunes.com/dtds/podcast-1.0.dtd"
	ContentType     = "application/rss+xml; charset=utf-8"
)

type rss struct {
	XMLName  xml.Name   `xml:"rss"`
	Version  string     `xml:"version,attr"`
	ITunesNS string     `xml:"xmlns:itunes,attr"`
	Channel  rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title          string          `xml:"title"`
	Link           string          `xml:"link"`
	Description    string          `xml:"description"`
	Language       string          `xml:"language"`
	Generator      string          `xml:"generator"`
	LastBuildDate  string          `xml:"lastBuildDate"`
	ITunesAuthor   string          `xml:"itunes:author,omitempty"`
	ITunesSummary  string          `xml:"itunes:summary,omitempty"`
	ITunesExplicit string          `xml:"itunes:explicit"`
	ITunesCategory *itunesCategory `xml:"itunes:category,omitempty"`
	Items          []rssItem       `xml:"item"`
}

type itunesCategory struct {
	Text string `xml:"text,attr"`
}

type rssItem struct {
	Title         string       `xml:"title"`
	Link          string       `xml:"link,omitempty"`
	GUID          rssGUID      `xml:"guid"`
	Description   string       `xml:"description"`
	ITunesSummary string       `xml:"itunes:summary,omitempty"`
	Enclosure     rssEnclosure `xml:"enclosure"`
	PubDate       string       `xml:"pubDate"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

var lastBuildDateRE = regexp.MustCompile(`(?s)<lastBuildDate>.*?</lastBuildDate>`)

// Render serializes the feed as RSS 2.0 with itunes extensions. Items are
// ordered newest first with ties broken by title, so the output depends only
// on the feed content and buildTime.
func Render(f *Feed, buildTime time.Time) ([]byte, error) {
	episodes := append([]Episode(nil), f.Episodes...)
	sort.SliceStable(episodes, func(i, j int) bool {
		if !episodes[i].Published.Equal(episodes[j].Published) {
			return episodes[i].Published.After(episodes[j].Published)
		}
		return episodes[i].Title < episodes[j].Title
	})

	ch := rssChannel{
		Title:          f.Name,
		Link:           f.Website,
		Description:    f.Description,
		Language:       "ro",
		Generator:      generator,
		LastBuildDate:  buildTime.UTC().Format(time.RFC1123Z),
		ITunesAuthor:   f.Author,
		ITunesSummary:  f.Description,
		ITunesExplicit: explicitValue(f.Explicit),
	}
	if f.Category != "" {
		ch.ITunesCategory = &itunesCategory{Text: f.Category}
	}

	for _, e := range episodes {
		ch.Items = append(ch.Items, rssItem{
			Title:         e.Title,
			Link:          e.SourceURL,
			GUID:          rssGUID{Value: GUID(e)},
			Description:   e.Summary,
			ITunesSummary: e.Summary,
			Enclosure:     rssEnclosure{URL: e.MediaURL, Type: e.MediaType},
			PubDate:       e.Published.UTC().Format(time.RFC1123Z),
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(rss{Version: "2.0", ITunesNS: itunesNamespace, Channel: ch}); err != nil {
		return nil, fmt.Errorf("encoding rss for %s: %w", f.Name, err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// GUID is a stable item identifier derived from the episode source URL,
// falling back to the media URL.
func GUID(e Episode) string {
	key := e.SourceURL
	if key == "" {
		key = e.MediaURL
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// StripVolatile blanks the build timestamp, the only field that changes
// between renders of identical content.
func StripVolatile(data []byte) []byte {
	return lastBuildDateRE.ReplaceAll(data, []byte("<lastBuildDate></lastBuildDate>"))
}

// Fingerprint is the hex MD5 of the serialized feed without volatile fields.
func Fingerprint(data []byte) string {
	sum := md5.Sum(StripVolatile(data))
	return hex.EncodeToString(sum[:])
}

func explicitValue(explicit bool) string {
	if explicit {
		return "yes"
	}
	return "no"
}
