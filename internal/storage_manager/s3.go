package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3FileProvider.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3FileProvider keeps files as objects under an optional key prefix.
type S3FileProvider struct {
	client S3API
	bucket string
	prefix string
}

// NewS3FileProvider creates a provider for bucket. prefix may be empty.
func NewS3FileProvider(client S3API, bucket, prefix string) *S3FileProvider {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3FileProvider{client: client, bucket: bucket, prefix: prefix}
}

func (p *S3FileProvider) key(path string) *string {
	return aws.String(p.prefix + strings.TrimPrefix(path, "/"))
}

// Read downloads an object, or returns ErrNotFound.
func (p *S3FileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(p.bucket), Key: p.key(path)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", p.bucket, *p.key(path), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", p.bucket, *p.key(path), err)
	}
	return data, nil
}

// Write uploads an object, replacing any existing one.
func (p *S3FileProvider) Write(ctx context.Context, path string, data []byte) error {
	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    p.key(path),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", p.bucket, *p.key(path), err)
	}
	return nil
}

// Exists reports whether the object is present.
func (p *S3FileProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(p.bucket), Key: p.key(path)})
	switch {
	case err == nil:
		return true, nil
	case isS3NotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("head s3://%s/%s: %w", p.bucket, *p.key(path), err)
	}
}

// Delete removes the object.
func (p *S3FileProvider) Delete(ctx context.Context, path string) error {
	if _, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(p.bucket), Key: p.key(path)}); err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", p.bucket, *p.key(path), err)
	}
	return nil
}

// List pages through the objects under prefix.
func (p *S3FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: p.key(prefix),
	})

	result := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isS3NotFound(err) {
				return result, nil
			}
			return nil, fmt.Errorf("list s3://%s/%s: %w", p.bucket, *p.key(prefix), err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				result = append(result, strings.TrimPrefix(*obj.Key, p.prefix))
			}
		}
	}
	sort.Strings(result)
	return result, nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey", "NoSuchBucket":
		return true
	}
	return false
}
