package publish

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/RRCFeeds/internal/database"
	"github.com/TobiSchelling/RRCFeeds/internal/feed"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "hashes.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type recordingUploader struct {
	mu    sync.Mutex
	puts  map[string][]byte
	fails map[string]bool
}

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{puts: make(map[string][]byte), fails: make(map[string]bool)}
}

func (u *recordingUploader) Put(_ context.Context, path string, data []byte, contentType string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fails[path] {
		return errors.New("remote unavailable")
	}
	if contentType != feed.ContentType {
		return errors.New("unexpected content type " + contentType)
	}
	u.puts[path] = data
	return nil
}

func (u *recordingUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.puts)
}

func testFeeds() []*feed.Feed {
	ep := feed.Episode{
		Title:     "Episod 1",
		MediaURL:  "https://cdn.example/1.mp3",
		MediaType: "audio/mpeg",
		SourceURL: "https://radio.example/1",
		Published: time.Date(2024, 3, 12, 10, 30, 0, 0, time.UTC),
	}
	return []*feed.Feed{
		{Name: "Stand-up", Category: "Comedy", Website: "https://radio.example/standup", Episodes: []feed.Episode{ep}},
		{Name: "Texte si pretexte", Category: "Emisiuni", Website: "https://radio.example/texte", Episodes: []feed.Episode{ep}},
	}
}

func newTestPublisher(u *recordingUploader, db *database.DB, clock *time.Time) *Publisher {
	p := New(u, db, "rrc", hclog.NewNullLogger())
	p.now = func() time.Time { return *clock }
	return p
}

func TestPublishAllUploadsNewFeeds(t *testing.T) {
	db := openTestDB(t)
	u := newRecordingUploader()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPublisher(u, db, &clock)

	r, err := p.PublishAll(context.Background(), testFeeds())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Uploaded)
	assert.Equal(t, 0, r.Unchanged)
	assert.Empty(t, r.Failed)

	assert.Contains(t, u.puts, "rrc/Comedy-Stand-up.xml")
	assert.Contains(t, u.puts, "rrc/Emisiuni-Texte-si-pretexte.xml")
	assert.True(t, strings.Contains(string(u.puts["rrc/Comedy-Stand-up.xml"]), "<lastBuildDate>"))

	records, err := db.GetPublishRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, feed.Fingerprint(u.puts["rrc/Comedy-Stand-up.xml"]), records["rrc/Comedy-Stand-up.xml"].Fingerprint)
}

func TestPublishAllSkipsUnchanged(t *testing.T) {
	db := openTestDB(t)
	u := newRecordingUploader()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPublisher(u, db, &clock)

	_, err := p.PublishAll(context.Background(), testFeeds())
	require.NoError(t, err)
	before, err := db.GetPublishRecords()
	require.NoError(t, err)

	// A later build time alone is not a change.
	clock = clock.Add(24 * time.Hour)
	u.puts = make(map[string][]byte)
	r, err := p.PublishAll(context.Background(), testFeeds())
	require.NoError(t, err)
	assert.Equal(t, 0, r.Uploaded)
	assert.Equal(t, 2, r.Unchanged)
	assert.Equal(t, 0, u.count())

	after, err := db.GetPublishRecords()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPublishAllUploadsChangedFeed(t *testing.T) {
	db := openTestDB(t)
	u := newRecordingUploader()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPublisher(u, db, &clock)

	feeds := testFeeds()
	_, err := p.PublishAll(context.Background(), feeds)
	require.NoError(t, err)

	feeds[1].Episodes = append(feeds[1].Episodes, feed.Episode{
		Title:     "Episod 2",
		MediaURL:  "https://cdn.example/2.mp3",
		SourceURL: "https://radio.example/2",
		Published: time.Date(2024, 3, 19, 10, 30, 0, 0, time.UTC),
	})
	u.puts = make(map[string][]byte)
	r, err := p.PublishAll(context.Background(), feeds)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Uploaded)
	assert.Equal(t, 1, r.Unchanged)
	assert.Contains(t, u.puts, "rrc/Emisiuni-Texte-si-pretexte.xml")
}

func TestPublishAllFailedUploadIsRetriedNextRun(t *testing.T) {
	db := openTestDB(t)
	u := newRecordingUploader()
	u.fails["rrc/Comedy-Stand-up.xml"] = true
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPublisher(u, db, &clock)

	r, err := p.PublishAll(context.Background(), testFeeds())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Uploaded)
	require.Len(t, r.Failed, 1)
	assert.Equal(t, "Stand-up", r.Failed[0].Feed)
	assert.Equal(t, "rrc/Comedy-Stand-up.xml", r.Failed[0].Path)

	var ue *UploadError
	assert.True(t, errors.As(error(r.Failed[0]), &ue))

	records, err := db.GetPublishRecords()
	require.NoError(t, err)
	assert.NotContains(t, records, "rrc/Comedy-Stand-up.xml")
	assert.Contains(t, records, "rrc/Emisiuni-Texte-si-pretexte.xml")

	delete(u.fails, "rrc/Comedy-Stand-up.xml")
	r, err = p.PublishAll(context.Background(), testFeeds())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Uploaded)
	assert.Equal(t, 1, r.Unchanged)
	assert.Empty(t, r.Failed)
}

func TestResultString(t *testing.T) {
	r := &Result{Uploaded: 2, Unchanged: 3, Failed: []*UploadError{{}}}
	assert.Equal(t, "2 uploaded, 3 unchanged, 1 failed", r.String())
}

func TestChanged(t *testing.T) {
	db := openTestDB(t)
	u := newRecordingUploader()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := newTestPublisher(u, db, &clock)

	feeds := testFeeds()
	paths, err := p.Changed(feeds)
	require.NoError(t, err)
	assert.Equal(t, []string{"rrc/Comedy-Stand-up.xml", "rrc/Emisiuni-Texte-si-pretexte.xml"}, paths)
	assert.Equal(t, 0, u.count())

	_, err = p.PublishAll(context.Background(), feeds[:1])
	require.NoError(t, err)
	paths, err = p.Changed(feeds)
	require.NoError(t, err)
	assert.Equal(t, []string{"rrc/Emisiuni-Texte-si-pretexte.xml"}, paths)
}

// cancelAfterPut cancels the run once the first upload has gone through.
type cancelAfterPut struct {
	*recordingUploader
	cancel context.CancelFunc
}

func (u *cancelAfterPut) Put(ctx context.Context, path string, data []byte, contentType string) error {
	err := u.recordingUploader.Put(ctx, path, data, contentType)
	u.cancel()
	return err
}

func TestPublishAllCancelledKeepsCompletedRecords(t *testing.T) {
	db := openTestDB(t)
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	u := &cancelAfterPut{recordingUploader: newRecordingUploader(), cancel: cancel}
	p := New(u, db, "rrc", hclog.NewNullLogger())
	p.now = func() time.Time { return clock }

	r, err := p.PublishAll(ctx, testFeeds())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, r)
	assert.Equal(t, 1, r.Uploaded)

	records, err := db.GetPublishRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records, "rrc/Comedy-Stand-up.xml")

	next := newRecordingUploader()
	r, err = newTestPublisher(next, db, &clock).PublishAll(context.Background(), testFeeds())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Uploaded)
	assert.Equal(t, 1, r.Unchanged)
	assert.Contains(t, next.puts, "rrc/Emisiuni-Texte-si-pretexte.xml")
}
