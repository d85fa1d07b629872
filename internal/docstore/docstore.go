// Package docstore contains the document store interface every backend implements.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=./mock/docstore.go -package=mock -source=docstore.go

var (
	// ErrNotFound is returned when an update targets a missing document.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the backend rejects a read or write by its access rules.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidQuery ...
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidPath ...
	ErrInvalidPath = errors.New("invalid path")
	// ErrAborted is returned when a transaction could not be committed because of contention.
	ErrAborted = errors.New("aborted")
	// ErrIteratorDone is returned by Next after the iterator was stopped.
	ErrIteratorDone = errors.New("no more items in iterator")
)

// Version is a monotonically increasing position in the store's commit log.
// A snapshot with Version v reflects every write committed with a version <= v.
type Version uint64

// Document ...
type Document struct {
	Path    string
	ID      string
	Data    map[string]interface{}
	Exists  bool
	Version Version
}

// QuerySnapshot ...
type QuerySnapshot struct {
	Docs    []*Document
	Version Version
}

// DocumentIterator delivers snapshots of a single document.
type DocumentIterator interface {
	// Next blocks until the next snapshot is available.
	Next() (*Document, error)
	Stop()
}

// QueryIterator delivers snapshots of a query.
type QueryIterator interface {
	// Next blocks until the next snapshot is available.
	Next() (*QuerySnapshot, error)
	Stop()
}

// Tx is a read-then-write transaction. All reads must happen before writes are applied.
type Tx interface {
	Get(path string) (*Document, error)
	Apply(writes ...Write)
}

// Store provides methods for interacting with a document database.
type Store interface {
	// Get returns document by path. Missing document is returned with Exists=false.
	Get(ctx context.Context, path string) (*Document, error)
	Query(ctx context.Context, q Query) ([]*Document, error)
	Count(ctx context.Context, q Query) (int64, error)

	WatchDocument(ctx context.Context, path string) DocumentIterator
	WatchQuery(ctx context.Context, q Query) QueryIterator

	RunTransaction(ctx context.Context, f func(ctx context.Context, tx Tx) error) (Version, error)
	ApplyBatch(ctx context.Context, writes []Write) (Version, error)
}

// Join builds a slash separated path.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split splits document path into parent collection path and document id.
func Split(path string) (collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}

	for _, v := range parts {
		if v == "" {
			return "", "", fmt.Errorf("%w: %q has empty segment", ErrInvalidPath, path)
		}
	}

	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

// NewID returns a new random document id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
