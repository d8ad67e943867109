package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3AssetStore stores image assets in a single S3 bucket.
type S3AssetStore struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3AssetStore(cfg sdkaws.Config, bucket string) *S3AssetStore {
	return &S3AssetStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: cfg.Region,
	}
}

// PresignUpload generates a presigned PUT URL for the given key.
func (s *S3AssetStore) PresignUpload(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)

	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		ContentType: &contentType,
	}
	presigned, err := presigner.PresignPutObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign put object: %w", err)
	}
	return presigned.URL, nil
}

// Delete removes the object at the given key.
func (s *S3AssetStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the canonical public URL for a key.
func (s *S3AssetStore) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
