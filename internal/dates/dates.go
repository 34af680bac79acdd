// Package dates turns the Romanian date strings printed on episode pages into
// timestamps.
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var months = map[string]string{
	"ianuarie":   "January",
	"februarie":  "February",
	"martie":     "March",
	"aprilie":    "April",
	"mai":        "May",
	"iunie":      "June",
	"iulie":      "July",
	"august":     "August",
	"septembrie": "September",
	"octombrie":  "October",
	"noiembrie":  "November",
	"decembrie":  "December",
}

// A month name optionally preceded by its day number.
var wordRE = regexp.MustCompile(`(\b\d{1,2}\s+)?(\p{L}+)`)

// Layouts tried before falling back to dateparse. The site prints
// "12 Martie 2024, 10:30" and occasionally drops the time.
var layouts = []string{
	"2 January 2006 15:04",
	"2 January 2006 15:04:05",
	"2 January 2006",
	"January 2 2006 15:04",
	"January 2 2006",
}

// ParseError is returned when a date string cannot be parsed after month
// translation.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing date %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Translate replaces Romanian month names with their English names. Whole
// words only. A capitalized name always matches; other casings only right
// after a day number, so the adverb "mai" in running text is left alone.
func Translate(raw string) string {
	return wordRE.ReplaceAllStringFunc(raw, func(m string) string {
		sub := wordRE.FindStringSubmatch(m)
		day, w := sub[1], sub[2]
		lower := strings.ToLower(w)
		en, ok := months[lower]
		if !ok || (day == "" && w != strings.ToUpper(lower[:1])+lower[1:]) {
			return m
		}
		return day + en
	})
}

// Normalize parses a localized date string. The wall clock is kept as-is and
// labelled UTC; no timezone conversion happens.
func Normalize(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, &ParseError{Raw: raw, Err: fmt.Errorf("empty date")}
	}
	s = Translate(s)
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ",", " ")), " ")

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return asUTC(t), nil
		}
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Raw: raw, Err: err}
	}
	return asUTC(t), nil
}

// OrNow is Normalize with the crawl's fallback applied.
func OrNow(raw string, now func() time.Time) (time.Time, error) {
	t, err := Normalize(raw)
	if err != nil {
		return now().UTC(), err
	}
	return t, nil
}

func asUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
