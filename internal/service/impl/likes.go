package impl

import (
	"context"
	"fmt"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
)

func (s *srv) SetLike(ctx context.Context, actor entities.Identity, postID string, currentlyLiked bool) (docstore.Version, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}

	v, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		post, err := tx.Get(schema.PostPath(postID))
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}

		if !post.Exists {
			return notFound("post", postID)
		}

		if schema.PostFromDoc(post).OwnerID == actor.ID {
			return service.ErrSelfAction
		}

		like, err := tx.Get(schema.LikePath(postID, actor.ID))
		if err != nil {
			return fmt.Errorf("failed to get like: %w", err)
		}

		// the record is the source of truth, a stale prior state must not move the counter twice
		switch {
		case currentlyLiked && like.Exists:
			tx.Apply(
				docstore.Delete(like.Path),
				docstore.Update(post.Path, map[string]interface{}{
					schema.PostLikesCount: docstore.Increment(-1),
				}),
			)
		case !currentlyLiked && !like.Exists:
			tx.Apply(
				docstore.Set(like.Path, schema.Membership()),
				docstore.Update(post.Path, map[string]interface{}{
					schema.PostLikesCount: docstore.Increment(1),
				}),
			)
		default:
			log.WithField("post", postID).WithField("user", actor.ID).Debug("like is already in requested state")
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to set like: %w", err)
	}

	return v, nil
}
