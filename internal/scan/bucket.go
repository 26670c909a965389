package scan

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hargabyte/jacograph/internal/config"
	"github.com/hargabyte/jacograph/internal/ingest"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketSource lists the objects under a prefix of an S3-compatible bucket,
// such as CI artifacts uploaded by a build.
type BucketSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewBucketSource connects to the bucket described by cfg. Credentials may be
// empty for public buckets.
func NewBucketSource(cfg config.S3Config) (*BucketSource, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := &minio.Options{Secure: cfg.UseSSL}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access != "" || secret != "" {
		opts.Creds = credentials.NewStaticV4(access, secret, "")
	} else {
		opts.Creds = credentials.NewStatic("", "", "", credentials.SignatureAnonymous)
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &BucketSource{
		client: client,
		bucket: bucket,
		prefix: strings.TrimPrefix(cfg.Prefix, "/"),
	}, nil
}

// String identifies the source in logs.
func (b *BucketSource) String() string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.prefix)
}

// Walk implements Source. Item paths are the full object keys, so that the
// directory a report was uploaded under still takes part in classification.
func (b *BucketSource) Walk(ctx context.Context, fn func(Item) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // stops the listing goroutine on early return

	objects := b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    b.prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("list %s: %w", b, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		key := obj.Key
		err := fn(Item{
			Path: key,
			Size: obj.Size,
			File: ingest.FileFunc(func(ctx context.Context) (io.ReadCloser, error) {
				return b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
			}),
		})
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}
