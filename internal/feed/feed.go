// Package feed contains feed listing variants and the personal feed resolver.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
)

//go:generate mockgen -destination=./mock/feed.go -package=mock -source=feed.go

var log = logrus.WithField("layer", "feed").WithField("package", "feed")

var (
	// ErrNoViewer is returned when the personal feed is requested without a signed-in user.
	ErrNoViewer = errors.New("personal feed requires a viewer")
	// ErrAuthorNotFound is returned when a post's owner has no user record.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrUnknownKind ...
	ErrUnknownKind = errors.New("unknown feed kind")
)

// WackValue is the review tag of wack posts.
const WackValue = "Wack"

// Defaults.
const (
	DefaultLimit         = 20
	DefaultPersonalLimit = 50
	DefaultBatchSize     = docstore.MaxInValues
)

// Kind ...
type Kind string

const (
	// Realtime is the newest public posts.
	Realtime Kind = "realtime"
	// Hot is public posts with likes, most liked first.
	Hot Kind = "hot"
	// Wack is public posts tagged wack, most liked first.
	Wack Kind = "wack"
	// Personal is public posts of followed users, newest first.
	Personal Kind = "personal"
)

// IsValid ...
func (k Kind) IsValid() bool {
	switch k {
	case Realtime, Hot, Wack, Personal:
		return true
	default:
		return false
	}
}

// Variant ...
type Variant struct {
	Kind Kind
	// Region filters posts by region when set. It is ignored by the personal feed.
	Region string
}

// Service ...
type Service interface {
	// Fetch returns a page of the feed variant as seen by viewer.
	Fetch(ctx context.Context, viewer entities.Identity, v Variant, limit int) ([]*entities.FeedData, error)
}

// Option ...
type Option func(f *feed)

// WithBatchSize sets the size of following id batches. It is capped by docstore.MaxInValues.
func WithBatchSize(n int) Option {
	return func(f *feed) {
		if n > 0 && n <= docstore.MaxInValues {
			f.batchSize = n
		}
	}
}

type feed struct {
	store     docstore.Store
	assembler *Assembler
	batchSize int
}

// New creates new instance of feed service.
func New(store docstore.Store, opts ...Option) Service {
	f := &feed{
		store:     store,
		assembler: NewAssembler(store),
		batchSize: DefaultBatchSize,
	}

	for _, o := range opts {
		o(f)
	}

	return f
}

// BaseQuery returns the query of a shared feed variant.
func BaseQuery(v Variant, limit int) (docstore.Query, error) {
	q := docstore.Collection(schema.Posts).
		Where(schema.PostArchived, docstore.Equal, false).
		Where(schema.PostVisibility, docstore.Equal, string(entities.PublicVisibility))

	switch v.Kind {
	case Realtime:
		q = q.OrderBy(schema.CreatedAt, docstore.Desc)
	case Hot:
		q = q.Where(schema.PostLikesCount, docstore.Greater, 0).
			OrderBy(schema.PostLikesCount, docstore.Desc)
	case Wack:
		q = q.Where(schema.PostValue, docstore.Equal, WackValue).
			OrderBy(schema.PostLikesCount, docstore.Desc)
	default:
		return docstore.Query{}, fmt.Errorf("%w: %q", ErrUnknownKind, v.Kind)
	}

	if v.Region != "" {
		q = q.Where(schema.PostRegion, docstore.Equal, v.Region)
	}

	return q.Limit(limit), nil
}

func (f *feed) Fetch(ctx context.Context, viewer entities.Identity, v Variant, limit int) ([]*entities.FeedData, error) {
	var (
		posts []*entities.Post
		err   error
	)

	if v.Kind == Personal {
		if limit <= 0 {
			limit = DefaultPersonalLimit
		}

		posts, err = f.personalPosts(ctx, viewer, limit)
	} else {
		if limit <= 0 {
			limit = DefaultLimit
		}

		posts, err = f.posts(ctx, v, limit)
	}

	if err != nil {
		return nil, err
	}

	if len(posts) == 0 {
		return []*entities.FeedData{}, nil
	}

	return f.assembler.AssembleAll(ctx, viewer, posts)
}

func (f *feed) posts(ctx context.Context, v Variant, limit int) ([]*entities.Post, error) {
	q, err := BaseQuery(v, limit)
	if err != nil {
		return nil, err
	}

	docs, err := f.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s feed: %w", v.Kind, err)
	}

	return toPosts(docs), nil
}

func toPosts(docs []*docstore.Document) []*entities.Post {
	out := make([]*entities.Post, len(docs))
	for i, d := range docs {
		out[i] = schema.PostFromDoc(d)
	}
	return out
}
