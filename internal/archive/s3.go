package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader mirrors archived NDJSON batches to S3. The teacher's go.mod
// pulls in aws-sdk-go-v2/{config,service/s3} as indirect dependencies but
// never calls either package; this type is what SPEC_FULL.md's domain-stack
// wiring closes that gap with (see DESIGN.md).
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Uploader builds an uploader from the default AWS credential chain
// (environment, shared config, instance/task role) for the given region.
// Returns nil, nil when bucket is empty so callers can treat S3 mirroring
// as opt-in without branching on every call site.
func NewS3Uploader(ctx context.Context, bucket, region, prefix string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}
	return &S3Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Upload puts the local file at path to s3://bucket/prefix/<relative path
// under the archive root's "transactions/" subtree>.
func (u *S3Uploader) Upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open %s for upload: %w", path, err)
	}
	defer f.Close()

	monthDir := filepath.Dir(path)
	yearDir := filepath.Dir(monthDir)
	key := filepath.ToSlash(filepath.Join(u.prefix, filepath.Base(yearDir), filepath.Base(monthDir), filepath.Base(path)))
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &u.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("archive: s3 PutObject %s/%s: %w", u.bucket, key, err)
	}
	return nil
}
