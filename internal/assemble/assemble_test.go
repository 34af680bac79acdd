package assemble

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/RRCFeeds/internal/feed"
)

const (
	showA = "https://www.radioromaniacultural.ro/emisiuni/teatru-national/"
	showB = "https://www.radioromaniacultural.ro/emisiuni/teatru-sambata/"
	showC = "https://www.radioromaniacultural.ro/emisiuni/texte-si-pretexte/"
)

func combos() []Combo {
	return []Combo{{
		Name:        "Teatru",
		Description: "Teatru **radiofonic**",
		Category:    "Combo",
		URLs:        []string{showA, showB},
	}}
}

func show(url, title string) feed.ShowFacts {
	return feed.ShowFacts{
		URL:         url,
		Title:       title,
		Author:      "Realizator: X",
		Program:     "Luni, 21:00",
		Description: "Despre " + title,
		Category:    "Emisiuni",
	}
}

func episode(showURL, title string) feed.EpisodeFacts {
	return feed.EpisodeFacts{
		ShowURL:   showURL,
		Title:     title,
		Published: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Content:   "Rezumat",
		MediaURL:  "https://cdn.example.com/" + title + ".mp3",
		MediaType: "audio/mpeg",
		SourceURL: showURL + title,
	}
}

func TestNewCreatesComboPlaceholders(t *testing.T) {
	a := New(combos(), nil)
	f, ok := a.Feed("Teatru")
	require.True(t, ok)
	assert.True(t, f.IsCombo())
	assert.Equal(t, showA, f.Website)
	assert.Equal(t, "<p>Teatru <strong>radiofonic</strong></p>", f.Description)
	assert.Empty(t, f.Episodes)
}

func TestUpsertShowCreatesAndUpdates(t *testing.T) {
	a := New(nil, nil)
	require.NoError(t, a.UpsertShow(show(showC, "Texte și pretexte")))

	f, ok := a.Feed("Texte și pretexte")
	require.True(t, ok)
	assert.Equal(t, "Realizator: X\nLuni, 21:00\nDespre Texte și pretexte", f.Description)
	assert.Equal(t, "Emisiuni", f.Category)
	assert.Equal(t, showC, f.Website)

	updated := show(showC, "Texte și pretexte")
	updated.Category = "Arhiva"
	require.NoError(t, a.UpsertShow(updated))
	require.NoError(t, a.UpsertShow(updated))

	f, _ = a.Feed("Texte și pretexte")
	assert.Equal(t, "Arhiva", f.Category)
	assert.Len(t, a.Snapshot(), 1)
}

func TestUpsertShowKeepsKnownCategory(t *testing.T) {
	a := New(nil, nil)
	a.Restore([]*feed.Feed{{Name: "A", Website: showC, Category: "Emisiuni"}})
	before, _ := a.Feed("A")

	uncategorized := show(showC, "A")
	uncategorized.Category = ""
	require.NoError(t, a.UpsertShow(uncategorized))

	after, _ := a.Feed("A")
	assert.Equal(t, "Emisiuni", after.Category)
	assert.Equal(t, before.Path("rrc"), after.Path("rrc"))
	assert.Equal(t, "rrc/Emisiuni-A.xml", after.Path("rrc"))
}

func TestUpsertShowNameTakenByCombo(t *testing.T) {
	a := New(combos(), nil)
	assert.Error(t, a.UpsertShow(show(showC, "Teatru")))
}

func TestAddEpisodeIdempotent(t *testing.T) {
	a := New(nil, nil)
	require.NoError(t, a.UpsertShow(show(showC, "Texte")))

	n, err := a.AddEpisode(episode(showC, "Ep 1"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = a.AddEpisode(episode(showC, "Ep 1"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f, _ := a.Feed("Texte")
	require.Len(t, f.Episodes, 1)
	assert.Equal(t, "Ep 1", f.Episodes[0].Title)
	assert.Equal(t, "https://cdn.example.com/Ep 1.mp3", f.Episodes[0].MediaURL)
}

func TestAddEpisodeRoutesIntoCombos(t *testing.T) {
	a := New(combos(), nil)
	require.NoError(t, a.UpsertShow(show(showA, "Teatru Național")))
	require.NoError(t, a.UpsertShow(show(showB, "Teatrul de sâmbătă")))
	require.NoError(t, a.UpsertShow(show(showC, "Texte")))

	n, err := a.AddEpisode(episode(showA, "Hamlet"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = a.AddEpisode(episode(showB, "Hamlet"))
	require.NoError(t, err)
	_, err = a.AddEpisode(episode(showC, "Eseu"))
	require.NoError(t, err)

	direct, _ := a.Feed("Teatru Național")
	require.Len(t, direct.Episodes, 1)
	assert.Equal(t, "Hamlet", direct.Episodes[0].Title)

	combo, _ := a.Feed("Teatru")
	require.Len(t, combo.Episodes, 2)
	assert.Equal(t, "Teatru Național: Hamlet", combo.Episodes[0].Title)
	assert.Equal(t, "Teatrul de sâmbătă: Hamlet", combo.Episodes[1].Title)

	texte, _ := a.Feed("Texte")
	assert.Len(t, texte.Episodes, 1)
}

func TestAddEpisodeMatchesMemberWithoutTrailingSlash(t *testing.T) {
	a := New([]Combo{{Name: "Mix", URLs: []string{"https://example.com/s"}}}, nil)
	require.NoError(t, a.UpsertShow(show("https://example.com/s/", "S")))
	_, err := a.AddEpisode(episode("https://example.com/s/", "E"))
	require.NoError(t, err)

	mix, _ := a.Feed("Mix")
	require.Len(t, mix.Episodes, 1)
	assert.Equal(t, "S: E", mix.Episodes[0].Title)
}

func TestAddEpisodeUnknownShow(t *testing.T) {
	a := New(combos(), nil)
	_, err := a.AddEpisode(episode(showA, "Hamlet"))

	var re *RoutingError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, showA, re.ShowURL)

	combo, _ := a.Feed("Teatru")
	assert.Empty(t, combo.Episodes)
}

func TestEpisodeOrderIsInsertionOrder(t *testing.T) {
	a := New(nil, nil)
	require.NoError(t, a.UpsertShow(show(showC, "Texte")))

	newer := episode(showC, "Newer")
	newer.Published = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older := episode(showC, "Older")
	older.Published = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _ = a.AddEpisode(older)
	_, _ = a.AddEpisode(newer)

	f, _ := a.Feed("Texte")
	assert.Equal(t, "Older", f.Episodes[0].Title)
	assert.Equal(t, "Newer", f.Episodes[1].Title)
}

func TestRestore(t *testing.T) {
	a := New(combos(), nil)
	a.Restore([]*feed.Feed{
		{Name: "Texte", Website: showC, Episodes: []feed.Episode{{Title: "Old"}}},
		{Name: "Teatru", Members: []string{"https://stale.example.com/"}, Episodes: []feed.Episode{{Title: "X: Y"}}},
		{Name: "Retired combo", Members: []string{showC}},
	})

	// Restored direct feeds route without a fresh upsert.
	n, err := a.AddEpisode(episode(showC, "Old"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	combo, ok := a.Feed("Teatru")
	require.True(t, ok)
	assert.Len(t, combo.Episodes, 1)
	assert.True(t, combo.HasMember(showA))
	assert.False(t, combo.HasMember("https://stale.example.com/"))

	_, ok = a.Feed("Retired combo")
	assert.False(t, ok)
}

func TestConcurrentAddEpisode(t *testing.T) {
	a := New(combos(), nil)
	require.NoError(t, a.UpsertShow(show(showA, "A")))
	require.NoError(t, a.UpsertShow(show(showB, "B")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, u := range []string{showA, showB} {
			wg.Add(1)
			go func(u string, i int) {
				defer wg.Done()
				// Every episode is submitted twice.
				_, err := a.AddEpisode(episode(u, fmt.Sprintf("ep-%d", i%25)))
				assert.NoError(t, err)
			}(u, i)
		}
	}
	wg.Wait()

	fa, _ := a.Feed("A")
	fb, _ := a.Feed("B")
	combo, _ := a.Feed("Teatru")
	assert.Len(t, fa.Episodes, 25)
	assert.Len(t, fb.Episodes, 25)
	assert.Len(t, combo.Episodes, 50)
}

func TestSnapshotSortedCopies(t *testing.T) {
	a := New(combos(), nil)
	require.NoError(t, a.UpsertShow(show(showC, "Texte")))
	_, _ = a.AddEpisode(episode(showC, "E"))

	snap := a.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "Teatru", snap[0].Name)
	assert.Equal(t, "Texte", snap[1].Name)

	snap[1].Episodes[0].Title = "mutated"
	f, _ := a.Feed("Texte")
	assert.Equal(t, "E", f.Episodes[0].Title)
}
