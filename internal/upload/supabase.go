package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
	supabase "github.com/supabase-community/supabase-go"
)

type bucketClient interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
}

// SupabaseStore uploads into a Supabase Storage bucket with upsert enabled.
type SupabaseStore struct {
	storage bucketClient
	bucket  string
}

func NewSupabaseStore(url, key, bucket string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase client: %w", err)
	}
	return &SupabaseStore{storage: client.Storage, bucket: bucket}, nil
}

func (s *SupabaseStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	upsert := true
	opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}
	if _, err := s.storage.UploadFile(s.bucket, path, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("supabase upload %s/%s: %w", s.bucket, path, err)
	}
	return nil
}
