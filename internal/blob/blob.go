// Package blob contains the blob storage interface used for post and profile images.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=./mock/blob.go -package=mock -source=blob.go

var (
	// ErrUnsupportedType ...
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrForeignURL is returned when url does not point into the storage.
	ErrForeignURL = errors.New("url does not belong to storage")
)

// Storage stores objects and returns durable fetchable urls.
type Storage interface {
	Upload(ctx context.Context, r io.Reader, size int64, path, contentType string) (string, error)
	DeleteByURL(ctx context.Context, url string) error
}

// ContentType returns content type of an image extension.
func ContentType(ext string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "image/jpeg", nil
	case "png":
		return "image/png", nil
	case "webp":
		return "image/webp", nil
	case "gif":
		return "image/gif", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
}

// PostImagePath returns object path of a post image: posts/{uid}/{ts}_{rand}.{ext}.
func PostImagePath(uid, ext string, now time.Time) string {
	return fmt.Sprintf("posts/%s/%d_%s.%s", uid, now.UnixNano()/int64(time.Millisecond), random(), normalizeExt(ext))
}

// ProfileImagePath returns object path of a profile image.
func ProfileImagePath(uid, ext string, now time.Time) string {
	return fmt.Sprintf("profile_images/%s_%d_%s.%s", uid, now.UnixNano()/int64(time.Millisecond), random(), normalizeExt(ext))
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}

func random() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
