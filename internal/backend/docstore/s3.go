package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	kconfig "github.com/gmllt/kboard/internal/config"
)

// S3Timeout bounds every S3 request.
const S3Timeout = 10 * time.Second

// NewS3Client initializes an S3 client using the provided configuration.
// It is compatible with MinIO and other S3-compatible services.
func NewS3Client(ctx context.Context, cfg kconfig.S3Config) (*s3.Client, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		return nil, errors.New("S3 endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid S3 endpoint: %w", err)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.DisableChecksum {
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	}), nil
}

// S3API is the subset of the S3 client the blob uses.
type S3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Blob stores the board document as one object in a bucket.
type S3Blob struct {
	client S3API
	bucket string
	key    string
}

func NewS3Blob(client S3API, bucket, key string) *S3Blob {
	return &S3Blob{client: client, bucket: bucket, key: key}
}

// EnsureBucketExists checks that the configured bucket is reachable.
func (b *S3Blob) EnsureBucketExists(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, S3Timeout)
	defer cancel()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
			return fmt.Errorf("bucket %s does not exist", b.bucket)
		}
		return fmt.Errorf("error checking bucket: %w", err)
	}
	return nil
}

func (b *S3Blob) Get(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, S3Timeout)
	defer cancel()
	resp, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("error loading %s from S3: %w", b.key, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", b.key, err)
	}
	return data, nil
}

func (b *S3Blob) Put(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, S3Timeout)
	defer cancel()
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error saving %s to S3: %w", b.key, err)
	}
	return nil
}
