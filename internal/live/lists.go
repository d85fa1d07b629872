package live

import (
	"context"
	"errors"

	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
	"github.com/ting-rn/ting-sync/internal/subscription"
)

var (
	// ErrNotToggleable is returned by views which have nothing to toggle.
	ErrNotToggleable = errors.New("view is not toggleable")
	// ErrLoading is returned when a toggle is requested before the view has loaded.
	ErrLoading = errors.New("view is loading")
)

// CommentsState ...
type CommentsState struct {
	Comments []*entities.Comment
	Loading  bool
}

// CommentsView streams comments of a post, newest first.
type CommentsView struct {
	c *subscription.Collection[*entities.Comment]
}

// Comments creates a comments view.
func (f *Factory) Comments(ctx context.Context, postID string, limit int, onChange func(CommentsState)) *CommentsView {
	v := &CommentsView{}

	v.c = subscription.NewCollection(ctx, f.cfg.Store, schema.CommentFromDoc, func(s subscription.CollectionState[*entities.Comment]) {
		if onChange != nil {
			onChange(CommentsState{Comments: s.Data, Loading: s.Loading})
		}
	})

	q := service.CommentsQuery(postID, limit)
	v.c.Bind(&q)

	return v
}

// State ...
func (v *CommentsView) State() CommentsState {
	s := v.c.State()
	return CommentsState{Comments: s.Data, Loading: s.Loading}
}

// Toggle ...
func (v *CommentsView) Toggle(context.Context) error {
	return ErrNotToggleable
}

// Close ...
func (v *CommentsView) Close() {
	v.c.Close()
}

// GuestbookState ...
type GuestbookState struct {
	Notes   []*entities.StickyNote
	Loading bool
}

// GuestbookView streams sticky notes of a profile, pinned first then newest first.
type GuestbookView struct {
	c *subscription.Collection[*entities.StickyNote]
}

// Guestbook creates a guestbook view.
func (f *Factory) Guestbook(ctx context.Context, target string, onChange func(GuestbookState)) *GuestbookView {
	v := &GuestbookView{}

	v.c = subscription.NewCollection(ctx, f.cfg.Store, schema.StickyNoteFromDoc, func(s subscription.CollectionState[*entities.StickyNote]) {
		if onChange != nil {
			onChange(guestbookState(s))
		}
	})

	q := service.NotesQuery(target)
	v.c.Bind(&q)

	return v
}

func guestbookState(s subscription.CollectionState[*entities.StickyNote]) GuestbookState {
	notes := append([]*entities.StickyNote(nil), s.Data...)
	entities.SortStickyNotes(notes)

	return GuestbookState{Notes: notes, Loading: s.Loading}
}

// State ...
func (v *GuestbookView) State() GuestbookState {
	return guestbookState(v.c.State())
}

// Toggle ...
func (v *GuestbookView) Toggle(context.Context) error {
	return ErrNotToggleable
}

// Close ...
func (v *GuestbookView) Close() {
	v.c.Close()
}

var (
	_ View = (*LikeView)(nil)
	_ View = (*FollowView)(nil)
	_ View = (*CommentsView)(nil)
	_ View = (*GuestbookView)(nil)
)
