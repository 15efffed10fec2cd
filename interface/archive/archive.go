// Package archive mirrors downloaded imagery to a remote storage.
package archive

import (
	"context"
	"fmt"
	"strings"
)

// Archive is a remote storage where saved images are mirrored
type Archive interface {
	// Upload copies the local file to the archive under the given name
	Upload(ctx context.Context, localPath, name string) error
	Name() string
}

// New creates the archive backend for the uri (gs://bucket/prefix or
// s3://bucket/prefix)
func New(ctx context.Context, uri string) (Archive, error) {
	scheme, bucket, prefix, err := parseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("New.%w", err)
	}
	switch scheme {
	case "gs":
		return NewGSArchive(ctx, bucket, prefix)
	case "s3":
		return NewS3Archive(ctx, bucket, prefix)
	}
	return nil, fmt.Errorf("New: unsupported archive scheme %s://", scheme)
}

func parseURI(uri string) (scheme, bucket, prefix string, err error) {
	i := strings.Index(uri, "://")
	if i == -1 {
		return "", "", "", fmt.Errorf("parseURI: not a bucket uri: %s", uri)
	}
	scheme, rest := uri[:i], uri[i+3:]
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", "", fmt.Errorf("parseURI: missing bucket: %s", uri)
	}
	return scheme, bucket, strings.Trim(prefix, "/"), nil
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
