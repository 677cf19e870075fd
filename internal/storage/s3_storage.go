package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/teskapnj/book-container/internal/config"
)

// IObjectStorage defines the interface for listing image storage.
type IObjectStorage interface {
	// Upload stores the image bytes under a generated key and returns the
	// public URL of the object.
	Upload(ctx context.Context, vendorID, code string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	// Probe verifies the bucket is writable by round-tripping a throwaway
	// object. Callers use a failed probe to fall back to metadata-only mode.
	Probe(ctx context.Context) error
}

// s3Storage implements IObjectStorage backed by an S3 bucket.
type s3Storage struct {
	cfg      *config.Config
	s3Client *s3.Client
}

// NewS3Storage creates a new S3-backed object storage service.
func NewS3Storage(cfg *config.Config) (IObjectStorage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Storage{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsCfg),
	}, nil
}

// objectKey builds a collision-resistant key scoped to the vendor:
// {namespace}/{vendorID}/{timestamp}_{code}_{random}.jpg
func (s *s3Storage) objectKey(vendorID, code string) string {
	random := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s/%s/%d_%s_%s.jpg", s.cfg.ImageNamespace, vendorID, time.Now().UnixMilli(), code, random)
}

// publicURL derives the object's public URL from the configured base, falling
// back to the standard virtual-hosted-style S3 URL.
func (s *s3Storage) publicURL(key string) string {
	base := s.cfg.ImageBaseS3URL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.AwsS3Bucket, s.cfg.AwsRegion)
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}

// Upload stores image bytes and returns the public URL.
func (s *s3Storage) Upload(ctx context.Context, vendorID, code string, data []byte) (string, error) {
	key := s.objectKey(vendorID, code)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return s.publicURL(key), nil
}

// Delete removes an object by key.
func (s *s3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Probe writes, reads back and deletes a throwaway object. Any failure means
// image uploads are unavailable in this environment.
func (s *s3Storage) Probe(ctx context.Context) error {
	key := fmt.Sprintf("%s/.probe/%s", s.cfg.ImageNamespace, uuid.NewString())
	payload := []byte("probe")

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return fmt.Errorf("storage probe write failed: %w", err)
	}

	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage probe read failed: %w", err)
	}
	out.Body.Close()

	if _, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	}); err != nil {
		// The throwaway object is orphaned but the bucket is usable.
		log.Printf("WARN: storage probe cleanup failed for %s: %v", key, err)
	}
	return nil
}
