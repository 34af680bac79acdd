package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/RRCFeeds/internal/dates"
	"github.com/TobiSchelling/RRCFeeds/internal/feed"
	"github.com/TobiSchelling/RRCFeeds/internal/slug"
)

const (
	noTitle   = "No title"
	noContent = "No content"

	defaultMediaType = "audio/mpeg"
)

// ErrNoMedia means an episode page has no audio source.
var ErrNoMedia = errors.New("no audio source on episode page")

// ShowLink is one show discovered on a show list page. It is also the
// record of the show list JSONL format.
type ShowLink struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// ExtractShowList returns the show links of a list page. Links back to the
// list page itself are dropped, and each show appears once.
func ExtractShowList(html []byte, pageURL string) ([]ShowLink, error) {
	doc, base, err := parse(html, pageURL)
	if err != nil {
		return nil, err
	}

	category := text(doc.Find("h1.cat-header__title").First())
	if category == "" {
		category = slug.Capitalize(lastSegment(base))
	}

	var links []ShowLink
	seen := make(map[string]bool)
	doc.Find("div.news-item").Each(func(_ int, item *goquery.Selection) {
		title := text(item.Find(".news-item__title").First())
		item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			abs := resolve(base, href)
			if abs == "" || feed.NormalizeURL(abs) == feed.NormalizeURL(base.String()) {
				return
			}
			key := feed.NormalizeURL(abs)
			if seen[key] {
				return
			}
			seen[key] = true
			t := title
			if t == "" {
				t = text(a)
			}
			links = append(links, ShowLink{Category: category, Title: t, URL: abs})
		})
	})
	return links, nil
}

// ExtractShow returns the facts of a show page, including the episode page
// URLs in page order.
func ExtractShow(html []byte, pageURL string) (feed.ShowFacts, error) {
	doc, base, err := parse(html, pageURL)
	if err != nil {
		return feed.ShowFacts{}, err
	}

	s := feed.ShowFacts{
		URL:         pageURL,
		Title:       text(doc.Find("h1.cat-header__title").First()),
		Author:      text(doc.Find("span.cat-header__descriere__realizator").First()),
		Program:     text(doc.Find("span.cat-header__descriere__program").First()),
		Description: text(doc.Find("p.cat-header__descriere").First()),
	}
	if s.Title == "" {
		s.Title = slug.Capitalize(strings.ReplaceAll(lastSegment(base), "-", " "))
	}

	seen := make(map[string]bool)
	doc.Find("div.news-item.news-item--with-audio").Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a.link").First().Attr("href")
		if !ok {
			return
		}
		abs := resolve(base, href)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		s.EpisodeURLs = append(s.EpisodeURLs, abs)
	})
	return s, nil
}

// ExtractEpisode returns the facts of an episode page. Missing title and
// content fall back to placeholders and an unparseable date falls back to
// now. A page without an audio source yields ErrNoMedia.
func ExtractEpisode(html []byte, pageURL, showURL string, now func() time.Time) (feed.EpisodeFacts, error) {
	doc, base, err := parse(html, pageURL)
	if err != nil {
		return feed.EpisodeFacts{}, err
	}

	src := doc.Find("source").First()
	mediaURL, _ := src.Attr("src")
	mediaURL = resolve(base, strings.TrimSpace(mediaURL))
	if mediaURL == "" {
		return feed.EpisodeFacts{}, ErrNoMedia
	}
	mediaType, _ := src.Attr("type")
	if strings.TrimSpace(mediaType) == "" {
		mediaType = guessMediaType(mediaURL)
	}

	ep := feed.EpisodeFacts{
		ShowURL:   showURL,
		Title:     text(doc.Find("article.articol h1").First()),
		Content:   text(doc.Find("#__content").First()),
		MediaURL:  mediaURL,
		MediaType: strings.TrimSpace(mediaType),
		SourceURL: pageURL,
	}
	if ep.Title == "" {
		ep.Title = noTitle
	}
	if ep.Content == "" {
		ep.Content = readableText(html, base)
	}
	if ep.Content == "" {
		ep.Content = noContent
	}

	// Unparseable dates fall back to now.
	ep.Published, _ = dates.OrNow(text(doc.Find("p.articol__autor-data").First()), now)
	return ep, nil
}

func parse(html []byte, pageURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return doc, base, nil
}

func readableText(html []byte, base *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(html), base)
	if err != nil {
		return ""
	}
	return normSpace(article.TextContent)
}

func text(s *goquery.Selection) string {
	return normSpace(s.Text())
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func lastSegment(u *url.URL) string {
	return path.Base(strings.TrimRight(u.Path, "/"))
}

func guessMediaType(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return defaultMediaType
	}
	if t := mime.TypeByExtension(path.Ext(u.Path)); strings.HasPrefix(t, "audio/") {
		return t
	}
	return defaultMediaType
}
