// Package upload stores rendered feed files at their public location.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/TobiSchelling/RRCFeeds/internal/config"
)

// ErrDryRun is returned by the dry-run sink for every upload.
var ErrDryRun = errors.New("dry run: upload skipped")

// Uploader writes data to path, overwriting any existing file.
type Uploader interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

// New builds the uploader selected by cfg.Target.
func New(cfg config.Upload) (Uploader, error) {
	switch cfg.Target {
	case "dir":
		return NewDirStore(cfg.Dir), nil
	case "supabase":
		key := os.Getenv(cfg.Supabase.KeyEnv)
		if key == "" {
			return nil, fmt.Errorf("supabase upload: environment variable %s is not set", cfg.Supabase.KeyEnv)
		}
		return NewSupabaseStore(cfg.Supabase.URL, key, cfg.Supabase.Bucket)
	case "http":
		token := ""
		if cfg.HTTP.TokenEnv != "" {
			token = os.Getenv(cfg.HTTP.TokenEnv)
		}
		return NewHTTPStore(cfg.HTTP.BaseURL, token, nil), nil
	case "none":
		return DryRun{}, nil
	default:
		return nil, fmt.Errorf("unknown upload target %q", cfg.Target)
	}
}

// DryRun accepts nothing, so no feed is ever marked published.
type DryRun struct{}

func (DryRun) Put(context.Context, string, []byte, string) error { return ErrDryRun }
