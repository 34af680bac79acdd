package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFeed() *Feed {
	return &Feed{
		Name:        "Texte și pretexte",
		Description: "Realizator: Valentin Protopopescu",
		Author:      "Valentin Protopopescu",
		Website:     "https://www.radioromaniacultural.ro/emisiuni/texte-si-pretexte/",
		Category:    "Emisiuni",
		Episodes: []Episode{
			{
				Title:     "Episodul 1",
				Summary:   "Primul & cel mai vechi",
				MediaURL:  "https://cdn.example.com/1.mp3",
				MediaType: "audio/mpeg",
				SourceURL: "https://www.radioromaniacultural.ro/texte-1/",
				Published: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			},
			{
				Title:     "Episodul 2",
				Summary:   "Al doilea",
				MediaURL:  "https://cdn.example.com/2.mp3",
				MediaType: "audio/mpeg",
				SourceURL: "https://www.radioromaniacultural.ro/texte-2/",
				Published: time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestFilename(t *testing.T) {
	f := sampleFeed()
	assert.Equal(t, "Emisiuni-Texte-si-pretexte.xml", f.Filename())
	assert.Equal(t, "rrc/Emisiuni-Texte-si-pretexte.xml", f.Path("/rrc/"))
	assert.Equal(t, "Emisiuni-Texte-si-pretexte.xml", f.Path(""))

	f.Category = ""
	assert.Equal(t, "Texte-si-pretexte.xml", f.Filename())
}

func TestHasEpisodeAndMember(t *testing.T) {
	f := sampleFeed()
	assert.True(t, f.HasEpisode("Episodul 1"))
	assert.False(t, f.HasEpisode("Episodul 3"))
	assert.False(t, f.IsCombo())

	combo := &Feed{Name: "Teatru", Members: []string{"https://example.com/a/"}}
	assert.True(t, combo.IsCombo())
	assert.True(t, combo.HasMember("https://example.com/a"))
	assert.False(t, combo.HasMember("https://example.com/b/"))
}

func TestCloneIsDeep(t *testing.T) {
	f := sampleFeed()
	c := f.Clone()
	c.Episodes[0].Title = "changed"
	c.Episodes = append(c.Episodes, Episode{Title: "x"})
	assert.Equal(t, "Episodul 1", f.Episodes[0].Title)
	assert.Len(t, f.Episodes, 2)
}

func TestRenderOrdersNewestFirst(t *testing.T) {
	data, err := Render(sampleFeed(), time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">`)
	assert.Contains(t, out, `<enclosure url="https://cdn.example.com/2.mp3" length="0" type="audio/mpeg"></enclosure>`)
	assert.Contains(t, out, `<itunes:category text="Emisiuni"></itunes:category>`)
	assert.Contains(t, out, "Primul &amp; cel mai vechi")
	assert.Contains(t, out, "<lastBuildDate>Wed, 14 Oct 2026 09:00:00 +0000</lastBuildDate>")
	assert.Less(t, strings.Index(out, "Episodul 2"), strings.Index(out, "Episodul 1"))
}

func TestRenderIndependentOfInsertionOrder(t *testing.T) {
	build := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	a := sampleFeed()
	b := sampleFeed()
	b.Episodes[0], b.Episodes[1] = b.Episodes[1], b.Episodes[0]

	da, err := Render(a, build)
	require.NoError(t, err)
	db, err := Render(b, build)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestFingerprintIgnoresBuildTime(t *testing.T) {
	f := sampleFeed()
	first, err := Render(f, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	second, err := Render(f, time.Date(2026, 10, 15, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, Fingerprint(first), Fingerprint(second))

	f.Episodes[0].Summary = "edited"
	third, err := Render(f, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(first), Fingerprint(third))
}

func TestStripVolatile(t *testing.T) {
	in := []byte("<a><lastBuildDate>Mon,\n 01 Jan</lastBuildDate><b/></a>")
	assert.Equal(t, "<a><lastBuildDate></lastBuildDate><b/></a>", string(StripVolatile(in)))
}

func TestGUIDStable(t *testing.T) {
	e := Episode{SourceURL: "https://example.com/ep/1"}
	assert.Equal(t, GUID(e), GUID(e))
	assert.True(t, strings.HasPrefix(GUID(e), "urn:uuid:"))
	assert.NotEqual(t, GUID(e), GUID(Episode{SourceURL: "https://example.com/ep/2"}))
	assert.Equal(t, GUID(Episode{MediaURL: "m"}), GUID(Episode{MediaURL: "m"}))
}

func TestParseRoundTrip(t *testing.T) {
	src := sampleFeed()
	data, err := Render(src, time.Now())
	require.NoError(t, err)

	got, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, src.Name, got.Name)
	assert.Equal(t, src.Website, got.Website)
	assert.Equal(t, src.Category, got.Category)
	assert.Equal(t, src.Author, got.Author)
	assert.False(t, got.Explicit)
	require.Len(t, got.Episodes, 2)
	assert.Equal(t, "Episodul 2", got.Episodes[0].Title)
	assert.Equal(t, "https://cdn.example.com/2.mp3", got.Episodes[0].MediaURL)
	assert.Equal(t, "audio/mpeg", got.Episodes[0].MediaType)
	assert.True(t, src.Episodes[1].Published.Equal(got.Episodes[0].Published))
}

func TestDescriptionHTML(t *testing.T) {
	assert.Equal(t, "<p>Teatru de la <strong>RRC</strong>.</p>", DescriptionHTML("Teatru de la **RRC**."))
	assert.Equal(t, "", DescriptionHTML("  "))
}
