package impl

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ting-rn/ting-sync/internal/blob"
	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
)

func (s *srv) CreatePost(ctx context.Context, actor entities.Identity, p service.CreatePostParams) (*entities.Post, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	if p.Visibility == "" {
		p.Visibility = entities.PublicVisibility
	}

	if !p.Visibility.IsValid() {
		return nil, fmt.Errorf("%w: visibility %q", service.ErrInvalidArgument, p.Visibility)
	}

	title, content := s.clean(p.Title), s.clean(p.Content)
	if title == "" && content == "" && len(p.ImageURLs) == 0 {
		return nil, fmt.Errorf("%w: empty post", service.ErrInvalidArgument)
	}

	id := docstore.NewID()
	data := map[string]interface{}{
		schema.PostUserID:        actor.ID,
		schema.PostID:            id,
		schema.PostTitle:         title,
		schema.PostContent:       content,
		schema.PostImageURLs:     append([]string{}, p.ImageURLs...),
		schema.PostLikesCount:    int64(0),
		schema.PostCommentsCount: int64(0),
		schema.PostCategory:      p.Category,
		schema.PostValue:         p.Value,
		schema.PostRecipeID:      p.RecipeID,
		schema.PostRegion:        p.Region,
		schema.PostVisibility:    string(p.Visibility),
		schema.PostArchived:      false,
		schema.CreatedAt:         docstore.ServerTimestamp,
		schema.UpdatedAt:         docstore.ServerTimestamp,
	}

	if p.CapturedAt != nil {
		data[schema.PostCapturedAt] = p.CapturedAt.UTC()
	}

	if _, err := s.store.ApplyBatch(ctx, []docstore.Write{docstore.Set(schema.PostPath(id), data)}); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return s.GetPost(ctx, id)
}

func (s *srv) GetPost(ctx context.Context, id string) (*entities.Post, error) {
	d, err := s.store.Get(ctx, schema.PostPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	if !d.Exists {
		return nil, notFound("post", id)
	}

	return schema.PostFromDoc(d), nil
}

func (s *srv) UpdatePost(ctx context.Context, actor entities.Identity, id string, p service.UpdatePostParams) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	fields := map[string]interface{}{
		schema.UpdatedAt: docstore.ServerTimestamp,
	}

	if p.Title != nil {
		fields[schema.PostTitle] = s.clean(*p.Title)
	}
	if p.Content != nil {
		fields[schema.PostContent] = s.clean(*p.Content)
	}
	if p.ImageURLs != nil {
		fields[schema.PostImageURLs] = append([]string{}, (*p.ImageURLs)...)
	}
	if p.Visibility != nil {
		if !p.Visibility.IsValid() {
			return fmt.Errorf("%w: visibility %q", service.ErrInvalidArgument, *p.Visibility)
		}
		fields[schema.PostVisibility] = string(*p.Visibility)
	}
	if p.Category != nil {
		fields[schema.PostCategory] = *p.Category
	}
	if p.Value != nil {
		fields[schema.PostValue] = *p.Value
	}
	if p.RecipeID != nil {
		fields[schema.PostRecipeID] = *p.RecipeID
	}
	if p.Region != nil {
		fields[schema.PostRegion] = *p.Region
	}
	if p.CapturedAt != nil {
		fields[schema.PostCapturedAt] = p.CapturedAt.UTC()
	}

	return s.updateOwnPost(ctx, actor, id, fields)
}

func (s *srv) ArchivePost(ctx context.Context, actor entities.Identity, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	return s.updateOwnPost(ctx, actor, id, map[string]interface{}{
		schema.PostArchived: true,
		schema.UpdatedAt:    docstore.ServerTimestamp,
	})
}

func (s *srv) updateOwnPost(ctx context.Context, actor entities.Identity, id string, fields map[string]interface{}) error {
	if _, err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, err := tx.Get(schema.PostPath(id))
		if err != nil {
			return fmt.Errorf("failed to get post: %w", err)
		}

		if !d.Exists {
			return notFound("post", id)
		}

		if schema.PostFromDoc(d).OwnerID != actor.ID {
			return service.ErrForbidden
		}

		tx.Apply(docstore.Update(d.Path, fields))

		return nil
	}); err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}

	return nil
}

// visibleTo returns visibilities of owner's posts which viewer is allowed to see.
func (s *srv) visibleTo(ctx context.Context, viewer entities.Identity, ownerID string) ([]entities.Visibility, error) {
	if viewer.ID == ownerID {
		return []entities.Visibility{
			entities.PublicVisibility,
			entities.FollowerVisibility,
			entities.PrivateVisibility,
		}, nil
	}

	if viewer.IsZero() {
		return []entities.Visibility{entities.PublicVisibility}, nil
	}

	d, err := s.store.Get(ctx, schema.MemberPath(ownerID, entities.Followers, viewer.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to check follower: %w", err)
	}

	if d.Exists {
		return []entities.Visibility{entities.PublicVisibility, entities.FollowerVisibility}, nil
	}

	return []entities.Visibility{entities.PublicVisibility}, nil
}

func visibilityValues(v []entities.Visibility) []string {
	out := make([]string, len(v))
	for i := range v {
		out[i] = string(v[i])
	}
	return out
}

func (s *srv) ListUserPosts(ctx context.Context, viewer entities.Identity, ownerID string, p service.ListUserPostsParams) ([]*entities.Post, error) {
	if viewer.IsZero() {
		return []*entities.Post{}, nil
	}

	if p.Limit <= 0 {
		p.Limit = service.DefaultUserPostsLimit
	}

	visible, err := s.visibleTo(ctx, viewer, ownerID)
	if err != nil {
		return nil, err
	}

	q := docstore.Collection(schema.Posts).
		Where(schema.PostUserID, docstore.Equal, ownerID).
		Where(schema.PostVisibility, docstore.In, visibilityValues(visible)).
		OrderBy(schema.CreatedAt, docstore.Desc).
		Limit(p.Limit)

	if !p.IncludeArchived {
		q = q.Where(schema.PostArchived, docstore.Equal, false)
	}

	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	out := make([]*entities.Post, len(docs))
	for i, d := range docs {
		out[i] = schema.PostFromDoc(d)
	}

	return out, nil
}

func (s *srv) PinnedPosts(ctx context.Context, viewer entities.Identity, ownerID string, limit int) ([]*entities.Post, error) {
	if limit <= 0 {
		limit = service.DefaultPinnedPostsLimit
	}

	pins, err := s.store.Query(ctx, docstore.Collection(schema.PinsPath(ownerID)).
		OrderBy(schema.CreatedAt, docstore.Desc).
		Limit(limit),
	)
	if err != nil {
		log.WithError(err).WithField("owner", ownerID).Warn("failed to query pins")
		return []*entities.Post{}, nil
	}

	if len(pins) == 0 {
		return []*entities.Post{}, nil
	}

	ids := make([]string, len(pins))
	order := make(map[string]int, len(pins))
	for i, d := range pins {
		ids[i] = d.ID
		order[d.ID] = i
	}

	visible, err := s.visibleTo(ctx, viewer, ownerID)
	if err != nil {
		log.WithError(err).WithField("owner", ownerID).Warn("failed to resolve visibility")
		return []*entities.Post{}, nil
	}

	chunks := docstore.Chunk(ids, docstore.MaxInValues)
	results := make([][]*docstore.Document, len(chunks))

	gr, gctx := errgroup.WithContext(ctx)
	for i := range chunks {
		i := i
		gr.Go(func() error {
			docs, err := s.store.Query(gctx, docstore.Collection(schema.Posts).
				Where(docstore.DocumentID, docstore.In, chunks[i]),
			)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}

	if err := gr.Wait(); err != nil {
		log.WithError(err).WithField("owner", ownerID).Warn("failed to query pinned posts")
		return []*entities.Post{}, nil
	}

	allowed := make(map[entities.Visibility]bool, len(visible))
	for _, v := range visible {
		allowed[v] = true
	}

	out := make([]*entities.Post, 0, len(ids))
	for _, docs := range results {
		for _, d := range docs {
			p := schema.PostFromDoc(d)
			if p.OwnerID != ownerID || p.Archived || !allowed[p.Visibility] {
				continue
			}
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return order[out[i].ID] < order[out[j].ID]
	})

	return out, nil
}

func (s *srv) SetPin(ctx context.Context, actor entities.Identity, postID string, pinned bool) (docstore.Version, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return 0, err
	}

	if post.OwnerID != actor.ID {
		return 0, service.ErrForbidden
	}

	w := docstore.Delete(schema.PinPath(actor.ID, postID))
	if pinned {
		w = docstore.Merge(schema.PinPath(actor.ID, postID), schema.Membership())
	}

	v, err := s.store.ApplyBatch(ctx, []docstore.Write{w})
	if err != nil {
		return 0, fmt.Errorf("failed to set pin: %w", err)
	}

	return v, nil
}

func (s *srv) UploadPostImage(ctx context.Context, actor entities.Identity, r io.Reader, size int64, ext string) (string, error) {
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

	url, err := s.blob.Upload(ctx, r, size, blob.PostImagePath(actor.ID, ext, s.now()), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return url, nil
}

func (s *srv) DeleteImage(ctx context.Context, actor entities.Identity, url string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	if s.blob == nil {
		return errNoBlobStorage
	}

	if !strings.Contains(url, actor.ID) {
		return service.ErrForbidden
	}

	if err := s.blob.DeleteByURL(ctx, url); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return nil
}
