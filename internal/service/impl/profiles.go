package impl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/ting-rn/ting-sync/internal/blob"
	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
)

const defaultProvider = "password"

func (s *srv) RegisterUser(ctx context.Context, actor entities.Identity, p service.RegisterParams) (*entities.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	name := s.clean(p.UserName)
	if name == "" || p.CountryCode == "" {
		return nil, fmt.Errorf("%w: user name and country code are required", service.ErrInvalidArgument)
	}

	provider := actor.Provider
	if provider == "" {
		provider = defaultProvider
	}

	path := schema.UserPath(actor.ID)

	if _, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, err := tx.Get(path)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}

		if d.Exists {
			return nil
		}

		tx.Apply(docstore.Set(path, map[string]interface{}{
			schema.UserID:           actor.ID,
			schema.UserEmail:        actor.Email,
			schema.UserName:         name,
			schema.UserProfileImage: p.ProfileImageURL,
			schema.UserBio:          s.clean(p.Bio),
			schema.UserCountryCode:  p.CountryCode,
			schema.UserCountryName:  p.CountryName,
			schema.UserProvider:     provider,
			schema.CreatedAt:        docstore.ServerTimestamp,
		}))

		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	return s.GetUser(ctx, actor.ID)
}

func (s *srv) GetUser(ctx context.Context, uid string) (*entities.User, error) {
	d, err := s.store.Get(ctx, schema.UserPath(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !d.Exists {
		return nil, notFound("user", uid)
	}

	return schema.UserFromDoc(d), nil
}

func (s *srv) GetProfile(ctx context.Context, viewer entities.Identity, uid string) (*entities.ProfileInfo, error) {
	user, err := s.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	isOwner := !viewer.IsZero() && viewer.ID == uid
	if !isOwner {
		user.Email = ""
	}

	info := &entities.ProfileInfo{User: *user}

	gr, gctx := errgroup.WithContext(ctx)

	gr.Go(func() error {
		n, err := s.CountMembers(gctx, uid, entities.Followers)
		info.FollowerCount = n
		return err
	})

	gr.Go(func() error {
		n, err := s.CountMembers(gctx, uid, entities.Following)
		info.FollowingCount = n
		return err
	})

	// a failed post count must not hide the profile
	gr.Go(func() error {
		visible, err := s.visibleTo(gctx, viewer, uid)
		if err != nil {
			log.WithError(err).WithField("user", uid).Warn("failed to resolve visibility")
			return nil
		}

		q := docstore.Collection(schema.Posts).
			Where(schema.PostUserID, docstore.Equal, uid).
			Where(schema.PostArchived, docstore.Equal, false).
			Where(schema.PostVisibility, docstore.In, visibilityValues(visible))

		n, err := s.store.Count(gctx, q)
		if err != nil {
			log.WithError(err).WithField("user", uid).Warn("failed to count posts")
			return nil
		}
		info.PostCount = n

		docs, err := s.store.Query(gctx, q)
		if err != nil {
			log.WithError(err).WithField("user", uid).Warn("failed to sum received likes")
			return nil
		}

		for _, d := range docs {
			p := schema.PostFromDoc(d)
			info.ReceivedLikes += p.LikesCount
			if p.RecipeID != "" {
				info.RecipeCount++
			}
		}

		return nil
	})

	if isOwner {
		gr.Go(func() error {
			n, err := s.CountMembers(gctx, uid, entities.Blocks)
			if err != nil {
				return err
			}
			info.BlockCount = &n
			return nil
		})
	}

	if err := gr.Wait(); err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return info, nil
}

func (s *srv) LoadProfile(ctx context.Context, viewer entities.Identity, uid string) (*service.Profile, error) {
	if uid == "" {
		uid = viewer.ID
	}

	if uid == "" {
		return nil, service.ErrUnauthenticated
	}

	var p service.Profile

	gr, gctx := errgroup.WithContext(ctx)

	gr.Go(func() error {
		info, err := s.GetProfile(gctx, viewer, uid)
		p.Info = info
		return err
	})

	gr.Go(func() error {
		posts, err := s.ListUserPosts(gctx, viewer, uid, service.ListUserPostsParams{
			Limit: service.DefaultUserPostsLimit,
		})
		p.Posts = posts
		return err
	})

	gr.Go(func() error {
		pinned, err := s.PinnedPosts(gctx, viewer, uid, service.DefaultPinnedPostsLimit)
		p.Pinned = pinned
		return err
	})

	if err := gr.Wait(); err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *srv) UpdateProfile(ctx context.Context, actor entities.Identity, p service.UpdateProfileParams) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	fields := make(map[string]interface{})
	if p.UserName != nil {
		name := s.clean(*p.UserName)
		if name == "" {
			return fmt.Errorf("%w: empty user name", service.ErrInvalidArgument)
		}
		fields[schema.UserName] = name
	}
	if p.Title != nil {
		fields[schema.UserTitle] = s.clean(*p.Title)
	}
	if p.Location != nil {
		fields[schema.UserLocation] = s.clean(*p.Location)
	}
	if p.Bio != nil {
		fields[schema.UserBio] = s.clean(*p.Bio)
	}
	if p.CountryCode != nil {
		fields[schema.UserCountryCode] = *p.CountryCode
	}
	if p.CountryName != nil {
		fields[schema.UserCountryName] = *p.CountryName
	}

	if len(fields) == 0 {
		return nil
	}

	if _, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Update(schema.UserPath(actor.ID), fields),
	}); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return nil
}

func (s *srv) UpdateStatusMessage(ctx context.Context, actor entities.Identity, message string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	if _, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Update(schema.UserPath(actor.ID), map[string]interface{}{
			schema.UserStatusMessage: s.clean(message),
		}),
	}); err != nil {
		return fmt.Errorf("failed to update status message: %w", err)
	}

	return nil
}

func (s *srv) UploadProfileImage(ctx context.Context, actor entities.Identity, r io.Reader, size int64, ext string) (string, error) {
	if err := requireActor(actor); err != nil {
		return "", err
	}

	if s.blob == nil {
		return "", errNoBlobStorage
	}

	contentType, err := blob.ContentType(ext)
	if err != nil {
		return "", err
	}

	url, err := s.blob.Upload(ctx, r, size, blob.ProfileImagePath(actor.ID, ext, s.now()), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	if _, err := s.store.ApplyBatch(ctx, []docstore.Write{
		docstore.Update(schema.UserPath(actor.ID), map[string]interface{}{
			schema.UserProfileImage: url,
		}),
	}); err != nil {
		return "", fmt.Errorf("failed to set profile image: %w", err)
	}

	return url, nil
}

func (s *srv) ListUsers(ctx context.Context, uid string, kind entities.MembershipKind, limit int) ([]*entities.UserData, error) {
	if limit <= 0 {
		limit = service.DefaultMembersLimit
	}

	members, err := s.ListMembers(ctx, uid, kind, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidArgument) {
			return nil, err
		}
		log.WithError(err).WithField("user", uid).WithField("kind", kind).Warn("failed to list members")
		return []*entities.UserData{}, nil
	}

	users := make([]*entities.UserData, len(members))

	gr, gctx := errgroup.WithContext(ctx)
	for i := range members {
		i := i
		gr.Go(func() error {
			d, err := s.store.Get(gctx, schema.UserPath(members[i].PeerID))
			if err != nil {
				return err
			}
			if !d.Exists {
				return nil
			}

			u := schema.UserFromDoc(d)
			u.Email = ""
			users[i] = &entities.UserData{User: *u, Since: members[i].CreatedAt}

			return nil
		})
	}

	if err := gr.Wait(); err != nil {
		log.WithError(err).WithField("user", uid).WithField("kind", kind).Warn("failed to get members' users")
		return []*entities.UserData{}, nil
	}

	out := make([]*entities.UserData, 0, len(users))
	for _, u := range users {
		if u != nil {
			out = append(out, u)
		}
	}

	return out, nil
}
