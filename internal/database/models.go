package database

// ShowCheckpoint records the last episode cache save for a show.
type ShowCheckpoint struct {
	ShowKey      string
	EpisodeCount int
	SavedAt      string
}

// PublishRecord is the fingerprint of the last successfully published
// version of a feed file.
type PublishRecord struct {
	Path        string
	Fingerprint string
	PublishedAt string
}

// FeedSnapshot is one serialized feed kept for the next run.
type FeedSnapshot struct {
	Name      string
	Data      string
	UpdatedAt string
}
