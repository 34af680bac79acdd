package feed

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Parse reads an RSS document back into a Feed. Combo membership is not part
// of the wire format and is left empty.
func Parse(r io.Reader) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	return fromGofeed(parsed), nil
}

// ParseURL fetches and parses a published feed.
func ParseURL(ctx context.Context, feedURL string) (*Feed, error) {
	parsed, err := gofeed.NewParser().ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", feedURL, err)
	}
	return fromGofeed(parsed), nil
}

func fromGofeed(parsed *gofeed.Feed) *Feed {
	f := &Feed{
		Name:        strings.TrimSpace(parsed.Title),
		Description: parsed.Description,
		Website:     parsed.Link,
	}
	if ext := parsed.ITunesExt; ext != nil {
		f.Author = ext.Author
		f.Explicit = ext.Explicit == "yes" || ext.Explicit == "true"
		if len(ext.Categories) > 0 {
			f.Category = ext.Categories[0].Text
		}
	}

	for _, item := range parsed.Items {
		e := Episode{
			Title:     strings.TrimSpace(item.Title),
			Summary:   item.Description,
			SourceURL: item.Link,
		}
		if len(item.Enclosures) > 0 {
			e.MediaURL = item.Enclosures[0].URL
			e.MediaType = item.Enclosures[0].Type
		}
		if item.PublishedParsed != nil {
			e.Published = item.PublishedParsed.UTC()
		}
		f.Episodes = append(f.Episodes, e)
	}
	return f
}
