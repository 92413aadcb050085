// Package upload accepts product images and stores them in S3, or inlines
// them as data URIs when no bucket is configured.
package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ImageStore persists an image and returns the reference stored on the product.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Message() string
}

type S3Store struct {
	uploader *manager.Uploader
	bucket   string
}

// NewS3Store builds an uploader from the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Store{
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
		bucket:   bucket,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to s3: %w", key, err)
	}
	return result.Location, nil
}

func (s *S3Store) Message() string { return "Image uploaded" }

// DataURIStore keeps the image inline in the product record.
type DataURIStore struct{}

func (DataURIStore) Put(_ context.Context, _, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (DataURIStore) Message() string { return "Image Uploaded to Database" }
