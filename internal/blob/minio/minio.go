// Package minio is implementation of blob storage over an S3 compatible server.
package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ting-rn/ting-sync/internal/blob"
)

// Config ...
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is prepended to bucket and object name to build fetchable urls.
	PublicURL string
}

type storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New creates new instance of blob storage.
func New(c Config) (blob.Storage, error) {
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	publicURL := c.PublicURL
	if publicURL == "" {
		scheme := "http"
		if c.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, c.Endpoint)
	}

	return storage{
		client:    client,
		bucket:    c.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s storage) Upload(ctx context.Context, r io.Reader, size int64, path, contentType string) (string, error) {
	if _, err := s.client.PutObject(ctx, s.bucket, path, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"uploaded-at": time.Now().UTC().Format(time.RFC3339),
		},
	}); err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	return s.url(path), nil
}

func (s storage) DeleteByURL(ctx context.Context, url string) error {
	prefix := s.url("")
	if !strings.HasPrefix(url, prefix) {
		return blob.ErrForeignURL
	}

	if err := s.client.RemoveObject(ctx, s.bucket, strings.TrimPrefix(url, prefix), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}

	return nil
}

func (s storage) url(path string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, path)
}
