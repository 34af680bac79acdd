// Package publish uploads rendered feeds whose content changed since their
// last successful upload.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/RRCFeeds/internal/database"
	"github.com/TobiSchelling/RRCFeeds/internal/feed"
	"github.com/TobiSchelling/RRCFeeds/internal/logging"
	"github.com/TobiSchelling/RRCFeeds/internal/upload"
)

// UploadError records a feed whose upload failed. It is reported, not
// returned: the remaining feeds are still published.
type UploadError struct {
	Feed string
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s to %s: %v", e.Feed, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// RecordStore loads and saves the fingerprints of published files.
type RecordStore interface {
	GetPublishRecords() (map[string]database.PublishRecord, error)
	SavePublishRecords(map[string]database.PublishRecord) error
}

// Result holds publish statistics.
type Result struct {
	Uploaded  int
	Unchanged int
	Failed    []*UploadError
}

func (r *Result) String() string {
	return fmt.Sprintf("%d uploaded, %d unchanged, %d failed", r.Uploaded, r.Unchanged, len(r.Failed))
}

// Publisher renders feeds and hands changed ones to an Uploader.
type Publisher struct {
	uploader upload.Uploader
	records  RecordStore
	folder   string
	logger   hclog.Logger
	now      func() time.Time
}

func New(uploader upload.Uploader, records RecordStore, folder string, logger hclog.Logger) *Publisher {
	return &Publisher{
		uploader: uploader,
		records:  records,
		folder:   folder,
		logger:   logging.OrNull(logger).Named("publish"),
		now:      time.Now,
	}
}

// PublishAll publishes every feed whose fingerprint differs from its record.
// A record is only replaced after a reported-success upload. The record map
// is persisted once, after all feeds were processed or the context was
// cancelled. The returned error is set for record store failures and
// cancellation.
func (p *Publisher) PublishAll(ctx context.Context, feeds []*feed.Feed) (*Result, error) {
	records, err := p.records.GetPublishRecords()
	if err != nil {
		return nil, fmt.Errorf("loading publish records: %w", err)
	}

	r := &Result{}
	buildTime := p.now().UTC()
	var cancelled error
	for _, f := range feeds {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		path := f.Path(p.folder)

		data, err := feed.Render(f, buildTime)
		if err != nil {
			r.Failed = append(r.Failed, &UploadError{Feed: f.Name, Path: path, Err: err})
			p.logger.Error("render failed", "feed", f.Name, "error", err)
			continue
		}
		fp := feed.Fingerprint(data)

		if prev, ok := records[path]; ok && prev.Fingerprint == fp {
			r.Unchanged++
			p.logger.Debug("unchanged, not uploaded", "feed", f.Name, "path", path)
			continue
		}

		if err := p.uploader.Put(ctx, path, data, feed.ContentType); err != nil {
			r.Failed = append(r.Failed, &UploadError{Feed: f.Name, Path: path, Err: err})
			p.logger.Error("upload failed", "feed", f.Name, "path", path, "error", err)
			continue
		}

		records[path] = database.PublishRecord{
			Path:        path,
			Fingerprint: fp,
			PublishedAt: buildTime.Format(time.RFC3339),
		}
		r.Uploaded++
		p.logger.Info("uploaded", "feed", f.Name, "path", path, "bytes", len(data))
	}

	if err := p.records.SavePublishRecords(records); err != nil {
		return r, fmt.Errorf("saving publish records: %w", err)
	}
	return r, cancelled
}

// Changed returns the paths PublishAll would upload, without uploading.
func (p *Publisher) Changed(feeds []*feed.Feed) ([]string, error) {
	records, err := p.records.GetPublishRecords()
	if err != nil {
		return nil, fmt.Errorf("loading publish records: %w", err)
	}
	var paths []string
	buildTime := p.now().UTC()
	for _, f := range feeds {
		data, err := feed.Render(f, buildTime)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", f.Name, err)
		}
		path := f.Path(p.folder)
		if prev, ok := records[path]; !ok || prev.Fingerprint != feed.Fingerprint(data) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}
