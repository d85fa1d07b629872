package feed

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
)

// personalPosts returns the newest public posts of users followed by viewer.
//
// Every batch is capped at limit separately, so a batch whose window ends before
// the merged page does may hide younger posts of another batch's users.
func (f *feed) personalPosts(ctx context.Context, viewer entities.Identity, limit int) ([]*entities.Post, error) {
	if viewer.IsZero() {
		return nil, ErrNoViewer
	}

	following, err := f.memberIDs(ctx, viewer.ID, entities.Following)
	if err != nil {
		return nil, err
	}

	if len(following) == 0 {
		return []*entities.Post{}, nil
	}

	blocks, err := f.memberIDs(ctx, viewer.ID, entities.Blocks)
	if err != nil {
		return nil, err
	}

	ids := exclude(following, blocks)
	if len(ids) == 0 {
		return []*entities.Post{}, nil
	}

	batches := docstore.Chunk(ids, f.batchSize)
	results := make([][]*docstore.Document, len(batches))

	gr, gctx := errgroup.WithContext(ctx)
	for i := range batches {
		i := i
		gr.Go(func() error {
			docs, err := f.store.Query(gctx, docstore.Collection(schema.Posts).
				Where(schema.PostArchived, docstore.Equal, false).
				Where(schema.PostVisibility, docstore.Equal, string(entities.PublicVisibility)).
				Where(schema.PostUserID, docstore.In, batches[i]).
				OrderBy(schema.CreatedAt, docstore.Desc).
				Limit(limit),
			)
			if err != nil {
				return fmt.Errorf("failed to query batch %d: %w", i, err)
			}
			results[i] = docs
			return nil
		})
	}

	if err := gr.Wait(); err != nil {
		return nil, fmt.Errorf("failed to query personal feed: %w", err)
	}

	var posts []*entities.Post
	for _, docs := range results {
		posts = append(posts, toPosts(docs)...)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if len(posts) > limit {
		posts = posts[:limit]
	}

	log.WithField("viewer", viewer.ID).WithField("batches", len(batches)).Debugf("resolved %d posts", len(posts))

	return posts, nil
}

func (f *feed) memberIDs(ctx context.Context, uid string, kind entities.MembershipKind) ([]string, error) {
	docs, err := f.store.Query(ctx, docstore.Collection(schema.MembersPath(uid, kind)).
		OrderBy(schema.CreatedAt, docstore.Desc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}

	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}

	return out, nil
}

func exclude(ids, blocked []string) []string {
	if len(blocked) == 0 {
		return ids
	}

	set := make(map[string]struct{}, len(blocked))
	for _, id := range blocked {
		set[id] = struct{}{}
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			out = append(out, id)
		}
	}

	return out
}
