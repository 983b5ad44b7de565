package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader mirrors artifacts into an S3-compatible bucket.
type S3Uploader struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
}

// S3Config holds the configuration for creating an S3 uploader.
type S3Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use default AWS S3.
	Endpoint string
	// Region is the AWS region (e.g., "auto" for Tigris, "us-east-1" for AWS).
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// PublicURL is the base URL used to link uploaded artifacts from reports.
	PublicURL string
	// UsePathStyle enables path-style addressing (required for gofakes3 and MinIO).
	UsePathStyle bool
}

// NewS3Uploader creates an uploader with the given configuration.
// Credentials fall back to the default AWS chain when not set.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3UploaderFromClient(s3Client, cfg.BucketName, cfg.PublicURL), nil
}

// NewS3UploaderFromClient wraps an existing S3 client.
func NewS3UploaderFromClient(s3Client *s3.Client, bucketName, publicURL string) *S3Uploader {
	return &S3Uploader{
		s3Client:   s3Client,
		bucketName: bucketName,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
	}
}

// PutObject stores content under key.
func (u *S3Uploader) PutObject(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("artifacts: failed to put object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the link for key, or "" when no public base is configured.
func (u *S3Uploader) PublicURL(key string) string {
	if u.publicURL == "" {
		return ""
	}
	return u.publicURL + "/" + strings.TrimPrefix(key, "/")
}
