package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ObjectStore is the narrow interface the loader needs from an
// object-store client, mirroring how the legacy service wraps its Redis
// dependency behind a small adapter interface rather than depending on a
// concrete client type directly.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// S3Store adapts github.com/aws/aws-sdk-go-v2/service/s3 to ObjectStore.
type S3Store struct {
	client *s3.Client
}

// NewS3Store builds an S3-compatible client from static credentials and an
// optional custom endpoint (for S3-compatible object stores).
func NewS3Store(ctx context.Context, region, endpointURL, accessKey, secretKey string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("manifest: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client}, nil
}

// GetObject fetches an object's full body. A missing key surfaces as
// ErrArtifactNotFound.
func (s *S3Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return nil, fmt.Errorf("%w: %s/%s", ErrArtifactNotFound, bucket, key)
		}
		return nil, fmt.Errorf("manifest: get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, out.Body); err != nil {
		return nil, fmt.Errorf("manifest: read object body: %w", err)
	}
	return buf.Bytes(), nil
}
