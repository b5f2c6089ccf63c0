package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the part of *s3.Client the store needs.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures NewS3Store. Empty keys fall back to the default AWS
// credential chain; a non-empty Endpoint targets MinIO or another
// S3-compatible server with path-style addressing.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
	MaxBytes  int64
}

// S3Store uploads to a bucket.
type S3Store struct {
	client   s3API
	bucket   string
	base     string
	maxBytes int64
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds the client from opts.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, opts), nil
}

func newS3Store(client s3API, opts S3Options) *S3Store {
	base := opts.PublicURL
	if base == "" || base[0] == '/' {
		base = "s3://" + opts.Bucket
	}
	return &S3Store{client: client, bucket: opts.Bucket, base: base, maxBytes: opts.MaxBytes}
}

// Put uploads r as key. size must be the exact body length.
func (s *S3Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", ErrTooLarge
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return joinRef(s.base, key), nil
}

// Delete removes the object behind ref.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	key, err := keyFromRef(s.base, ref)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
