package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Config holds configuration for S3 storage
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO or other S3-compatible services
	CDNBaseURL      string // Optional: for URL rewriting
	UsePathStyle    bool   // Use path-style addressing (for MinIO)
}

// S3Client implements BlobStore using the AWS SDK
type S3Client struct {
	client     *s3.Client
	bucket     string
	region     string
	cdnBaseURL string
	logger     *zap.SugaredLogger
}

// NewS3Client creates a new S3 client
func NewS3Client(cfg S3Config, logger *zap.SugaredLogger) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket is not set")
	}

	var opts []func(*config.LoadOptions) error

	// Use custom endpoint if provided (for MinIO, etc.)
	if cfg.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
				SigningRegion:     cfg.Region,
			}, nil
		})
		opts = append(opts, config.WithEndpointResolverWithOptions(customResolver))
	}

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	opts = append(opts,
		config.WithRegion(cfg.Region),
		config.WithDefaultsMode(aws.DefaultsModeStandard),
	)

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Infow("S3 storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
	)

	return &S3Client{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		cdnBaseURL: cfg.CDNBaseURL,
		logger:     logger,
	}, nil
}

// Put uploads an object to S3 and returns the public URL
func (s *S3Client) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to S3: %w", err)
	}

	return s.URL(key), nil
}

// Get retrieves an object from S3
func (s *S3Client) Get(ctx context.Context, key string) ([]byte, string, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object from S3: %w", err)
	}

	return data, aws.ToString(result.ContentType), nil
}

// Delete removes an object from S3
func (s *S3Client) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}

// Ping checks that the bucket is reachable
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("failed to reach S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}

// URL returns the URL for an object
func (s *S3Client) URL(key string) string {
	return objectURL(s.cdnBaseURL, s.bucket, s.region, key)
}

func objectURL(cdnBaseURL, bucket, region, key string) string {
	// If CDN base URL is provided, use it
	if cdnBaseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(cdnBaseURL, "/"), key)
	}

	// Otherwise, construct S3 URL
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}
