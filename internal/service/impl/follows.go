package impl

import (
	"context"
	"fmt"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
)

func (s *srv) Follow(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error) {
	if err := checkPeer(actor, target); err != nil {
		return 0, err
	}

	blocked, err := s.store.Get(ctx, schema.MemberPath(actor.ID, entities.Blocks, target))
	switch {
	case err != nil:
		// access rules reject the batch anyway
		log.WithError(err).WithField("target", target).Warn("failed to check block")
	case blocked.Exists:
		return 0, service.ErrBlocked
	}

	v, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Set(schema.MemberPath(target, entities.Followers, actor.ID), schema.Membership()),
		docstore.Set(schema.MemberPath(actor.ID, entities.Following, target), schema.Membership()),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to follow: %w", err)
	}

	return v, nil
}

func (s *srv) Unfollow(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error) {
	if err := checkPeer(actor, target); err != nil {
		return 0, err
	}

	v, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Delete(schema.MemberPath(target, entities.Followers, actor.ID)),
		docstore.Delete(schema.MemberPath(actor.ID, entities.Following, target)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to unfollow: %w", err)
	}

	return v, nil
}

func (s *srv) SetFollow(ctx context.Context, actor entities.Identity, target string, currentlyFollowing bool) (docstore.Version, error) {
	if currentlyFollowing {
		return s.Unfollow(ctx, actor, target)
	}
	return s.Follow(ctx, actor, target)
}

func (s *srv) Block(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error) {
	if err := checkPeer(actor, target); err != nil {
		return 0, err
	}

	v, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Set(schema.MemberPath(actor.ID, entities.Blocks, target), schema.Membership()),
		docstore.Delete(schema.MemberPath(actor.ID, entities.Following, target)),
		docstore.Delete(schema.MemberPath(target, entities.Followers, actor.ID)),
		docstore.Delete(schema.MemberPath(target, entities.Following, actor.ID)),
		docstore.Delete(schema.MemberPath(actor.ID, entities.Followers, target)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to block: %w", err)
	}

	return v, nil
}

func (s *srv) Unblock(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error) {
	if err := checkPeer(actor, target); err != nil {
		return 0, err
	}

	v, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Delete(schema.MemberPath(actor.ID, entities.Blocks, target)),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to unblock: %w", err)
	}

	return v, nil
}

func (s *srv) CountMembers(ctx context.Context, uid string, kind entities.MembershipKind) (int64, error) {
	if !kind.IsValid() {
		return 0, fmt.Errorf("%w: kind %q", service.ErrInvalidArgument, kind)
	}

	n, err := s.store.Count(ctx, docstore.Collection(schema.MembersPath(uid, kind)))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}

	return n, nil
}

func (s *srv) ListMembers(ctx context.Context, uid string, kind entities.MembershipKind, limit int) ([]*entities.Membership, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: kind %q", service.ErrInvalidArgument, kind)
	}

	q := docstore.Collection(schema.MembersPath(uid, kind)).OrderBy(schema.CreatedAt, docstore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}

	out := make([]*entities.Membership, len(docs))
	for i, d := range docs {
		out[i] = schema.MembershipFromDoc(d)
	}

	return out, nil
}

func (s *srv) MemberIDs(ctx context.Context, uid string, kind entities.MembershipKind) ([]string, error) {
	members, err := s.ListMembers(ctx, uid, kind, 0)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.PeerID
	}

	return out, nil
}
