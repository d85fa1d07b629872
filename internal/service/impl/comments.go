package impl

import (
	"context"
	"fmt"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
)

func (s *srv) AddComment(ctx context.Context, actor entities.Identity, postID, content string) (*entities.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	content = s.clean(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty comment", service.ErrInvalidArgument)
	}

	id := docstore.NewID()

	if _, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		post, err := tx.Get(schema.PostPath(postID))
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}

		if !post.Exists {
			return notFound("post", postID)
		}

		tx.Apply(
			docstore.Set(schema.CommentPath(postID, id), map[string]interface{}{
				schema.CommentID:      id,
				schema.CommentPostID:  postID,
				schema.CommentUserID:  actor.ID,
				schema.CommentContent: content,
				schema.CreatedAt:      docstore.ServerTimestamp,
				schema.UpdatedAt:      docstore.ServerTimestamp,
			}),
			docstore.Update(post.Path, map[string]interface{}{
				schema.PostCommentsCount: docstore.Increment(1),
				schema.UpdatedAt:         docstore.ServerTimestamp,
			}),
		)

		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	d, err := s.store.Get(ctx, schema.CommentPath(postID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}

	if !d.Exists {
		return nil, notFound("comment", id)
	}

	return schema.CommentFromDoc(d), nil
}

func (s *srv) EditComment(ctx context.Context, actor entities.Identity, postID, commentID, content string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	content = s.clean(content)
	if content == "" {
		return fmt.Errorf("%w: empty comment", service.ErrInvalidArgument)
	}

	if _, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, err := tx.Get(schema.CommentPath(postID, commentID))
		if err != nil {
			return fmt.Errorf("failed to get comment: %w", err)
		}

		if !d.Exists {
			return notFound("comment", commentID)
		}

		if schema.CommentFromDoc(d).UserID != actor.ID {
			return service.ErrForbidden
		}

		tx.Apply(docstore.Update(d.Path, map[string]interface{}{
			schema.CommentContent: content,
			schema.UpdatedAt:      docstore.ServerTimestamp,
		}))

		return nil
	}); err != nil {
		return fmt.Errorf("failed to edit comment: %w", err)
	}

	return nil
}

func (s *srv) DeleteComment(ctx context.Context, actor entities.Identity, postID, commentID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	if _, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		post, err := tx.Get(schema.PostPath(postID))
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}

		comment, err := tx.Get(schema.CommentPath(postID, commentID))
		if err != nil {
			return fmt.Errorf("failed to get comment: %w", err)
		}

		if !comment.Exists {
			return notFound("comment", commentID)
		}

		author := schema.CommentFromDoc(comment).UserID
		if author != actor.ID && !(post.Exists && schema.PostFromDoc(post).OwnerID == actor.ID) {
			return service.ErrForbidden
		}

		tx.Apply(docstore.Delete(comment.Path))
		if post.Exists {
			tx.Apply(docstore.Update(post.Path, map[string]interface{}{
				schema.PostCommentsCount: docstore.Increment(-1),
			}))
		}

		return nil
	}); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	return nil
}

func (s *srv) ListComments(ctx context.Context, postID string, limit int) ([]*entities.Comment, error) {
	docs, err := s.store.Query(ctx, service.CommentsQuery(postID, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}

	out := make([]*entities.Comment, len(docs))
	for i, d := range docs {
		out[i] = schema.CommentFromDoc(d)
	}

	return out, nil
}
