package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/planet-ingester/service"
)

// GSArchive implements Archive for a Google Storage bucket
type GSArchive struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGSArchive creates an Archive mirroring to gs://{bucket}/{prefix}
func NewGSArchive(ctx context.Context, bucket, prefix string) (*GSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGSArchive.NewClient: %w", err)
	}
	return &GSArchive{client: client, bucket: bucket, prefix: prefix}, nil
}

// Name implements Archive
func (a *GSArchive) Name() string {
	return "GoogleStorage"
}

// Upload implements Archive
func (a *GSArchive) Upload(ctx context.Context, localPath, name string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("GSArchive.Open: %w", err)
	}
	defer file.Close()

	w := a.client.Bucket(a.bucket).Object(objectKey(a.prefix, name)).NewWriter(ctx)
	if _, err := io.Copy(w, file); err != nil {
		w.Close()
		return service.MakeTemporary(fmt.Errorf("GSArchive.Copy: %w", err))
	}
	if err := w.Close(); err != nil {
		return service.MakeTemporary(fmt.Errorf("GSArchive.Close: %w", err))
	}
	return nil
}
