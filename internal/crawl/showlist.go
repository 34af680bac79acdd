package crawl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/TobiSchelling/RRCFeeds/internal/scrape"
)

// WriteShowList writes one JSON object per line.
func WriteShowList(w io.Writer, shows []scrape.ShowLink) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, s := range shows {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("writing show %s: %w", s.URL, err)
		}
	}
	return nil
}

// ReadShowList reads a show list written by WriteShowList. Blank lines are
// ignored; a record without url is an error.
func ReadShowList(r io.Reader) ([]scrape.ShowLink, error) {
	var shows []scrape.ShowLink
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var s scrape.ShowLink
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("show list line %d: %w", line, err)
		}
		if s.URL == "" {
			return nil, fmt.Errorf("show list line %d: missing url", line)
		}
		shows = append(shows, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading show list: %w", err)
	}
	return shows, nil
}
