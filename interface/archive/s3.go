package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/airbusgeo/planet-ingester/service"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archive implements Archive for an AWS S3 bucket
type S3Archive struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Archive creates an Archive mirroring to s3://{bucket}/{prefix}.
// Credentials and region come from the default AWS configuration chain, or
// from the AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY environment pair.
func NewS3Archive(ctx context.Context, bucket, prefix string) (*S3Archive, error) {
	var opts []func(*config.LoadOptions) error
	if key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); key != "" && secret != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewS3Archive.LoadDefaultConfig: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB per part
	})
	return &S3Archive{uploader: uploader, bucket: bucket, prefix: prefix}, nil
}

// Name implements Archive
func (a *S3Archive) Name() string {
	return "S3"
}

// Upload implements Archive
func (a *S3Archive) Upload(ctx context.Context, localPath, name string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("S3Archive.Open: %w", err)
	}
	defer file.Close()

	if _, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey(a.prefix, name)),
		Body:   file,
	}); err != nil {
		return service.MakeTemporary(fmt.Errorf("S3Archive.Upload: %w", err))
	}
	return nil
}
