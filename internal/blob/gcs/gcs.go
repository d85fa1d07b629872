// Package gcs is implementation of blob storage over a firebase storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/blob"
)

var log = logrus.WithField("layer", "blob").WithField("package", "gcs")

const downloadHost = "firebasestorage.googleapis.com"

type bucket struct {
	h    *storage.BucketHandle
	name string
}

// New creates new instance of blob storage.
func New(h *storage.BucketHandle, name string) blob.Storage {
	return bucket{
		h:    h,
		name: name,
	}
}

// NewFromApp opens bucket of the firebase app.
func NewFromApp(ctx context.Context, app *firebase.App, name string) (blob.Storage, error) {
	client, err := app.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	h, err := client.Bucket(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return New(h, name), nil
}

// Upload writes object with a download token and returns its download url.
func (b bucket) Upload(ctx context.Context, r io.Reader, _ int64, path, contentType string) (string, error) {
	token := uuid.NewString()

	w := b.h.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close object writer: %w", err)
	}

	return fmt.Sprintf("https://%s/v0/b/%s/o/%s?alt=media&token=%s",
		downloadHost, b.name, url.PathEscape(path), token), nil
}

// DeleteByURL removes object referenced by a download or public url. Missing objects are ignored.
func (b bucket) DeleteByURL(ctx context.Context, rawURL string) error {
	path, err := b.objectPath(rawURL)
	if err != nil {
		return err
	}

	if err := b.h.Object(path).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			log.WithField("path", path).Debug("object is already deleted")
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (b bucket) objectPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", blob.ErrForeignURL, err.Error())
	}

	switch u.Host {
	case downloadHost:
		prefix := fmt.Sprintf("/v0/b/%s/o/", b.name)
		if !strings.HasPrefix(u.Path, prefix) {
			return "", blob.ErrForeignURL
		}
		return strings.TrimPrefix(u.Path, prefix), nil
	case "storage.googleapis.com":
		prefix := fmt.Sprintf("/%s/", b.name)
		if !strings.HasPrefix(u.Path, prefix) {
			return "", blob.ErrForeignURL
		}
		return strings.TrimPrefix(u.Path, prefix), nil
	default:
		return "", blob.ErrForeignURL
	}
}
