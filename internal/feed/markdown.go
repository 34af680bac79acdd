package feed

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// DescriptionHTML renders a markdown description, as written for combos in
// the config, to HTML. Plain text passes through as a paragraph.
func DescriptionHTML(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return markdown
	}
	return strings.TrimSpace(buf.String())
}
