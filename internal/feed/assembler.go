package feed

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
)

// Assembler joins posts with their authors and viewer-relative state.
type Assembler struct {
	store docstore.Store
}

// NewAssembler ...
func NewAssembler(store docstore.Store) *Assembler {
	return &Assembler{store: store}
}

// Assemble builds FeedData of the post. All reads are issued at once.
// The like and pin checks are skipped when viewer is zero.
func (a *Assembler) Assemble(ctx context.Context, viewer entities.Identity, p *entities.Post) (*entities.FeedData, error) {
	var (
		author   *docstore.Document
		likes    int64
		comments int64
		liked    bool
		pinned   bool
	)

	gr, gctx := errgroup.WithContext(ctx)

	exists := func(path string, out *bool) func() error {
		return func() error {
			d, err := a.store.Get(gctx, path)
			if err != nil {
				return err
			}
			*out = d.Exists
			return nil
		}
	}

	gr.Go(func() (err error) {
		author, err = a.store.Get(gctx, schema.UserPath(p.OwnerID))
		return err
	})

	gr.Go(func() (err error) {
		likes, err = a.store.Count(gctx, docstore.Collection(schema.LikesPath(p.ID)))
		return err
	})

	gr.Go(func() (err error) {
		comments, err = a.store.Count(gctx, docstore.Collection(schema.CommentsPath(p.ID)))
		return err
	})

	if !viewer.IsZero() {
		gr.Go(exists(schema.LikePath(p.ID, viewer.ID), &liked))
		gr.Go(exists(schema.PinPath(viewer.ID, p.ID), &pinned))
	}

	if err := gr.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble post %s: %w", p.ID, err)
	}

	if !author.Exists {
		return nil, fmt.Errorf("%w: post %s owner %s", ErrAuthorNotFound, p.ID, p.OwnerID)
	}

	return &entities.FeedData{
		User:          *schema.UserFromDoc(author),
		Post:          *p,
		IsPinned:      pinned,
		IsLikedByUser: liked,
		NumLikes:      likes,
		NumComments:   comments,
	}, nil
}

// AssembleAll assembles posts in parallel keeping their order.
func (a *Assembler) AssembleAll(ctx context.Context, viewer entities.Identity, posts []*entities.Post) ([]*entities.FeedData, error) {
	out := make([]*entities.FeedData, len(posts))

	gr, gctx := errgroup.WithContext(ctx)
	for i := range posts {
		i := i
		gr.Go(func() error {
			fd, err := a.Assemble(gctx, viewer, posts[i])
			if err != nil {
				return err
			}
			out[i] = fd
			return nil
		})
	}

	if err := gr.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}
