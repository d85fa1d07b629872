package live

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/docstore/memory"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/optimistic"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
	"github.com/ting-rn/ting-sync/internal/service/impl"
)

var (
	alice = entities.Identity{ID: "alice"}
	bob   = entities.Identity{ID: "bob"}
)

const (
	wait = 5 * time.Second
	tick = 5 * time.Millisecond
)

func setup(t *testing.T) (*Factory, *memory.Store, service.Service) {
	store := memory.New()
	srv := impl.New(store, nil)

	return NewFactory(Config{Store: store, Service: srv, SettleTimeout: time.Minute}), store, srv
}

func TestLikeView(t *testing.T) {
	f, store, srv := setup(t)
	ctx := context.Background()

	p, err := srv.CreatePost(ctx, alice, service.CreatePostParams{Title: "tteokbokki"})
	require.NoError(t, err)

	v := f.Like(ctx, bob, p.ID, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return !v.State().Loading }, wait, tick)
	assert.Equal(t, LikeState{Liked: false, Count: 0, Phase: optimistic.Idle}, v.State())

	require.NoError(t, v.Toggle(ctx))

	// settled by the subscription, not by the timeout
	require.Eventually(t, func() bool {
		return v.State() == LikeState{Liked: true, Count: 1, Phase: optimistic.Idle}
	}, wait, tick)

	require.NoError(t, v.Toggle(ctx))

	require.Eventually(t, func() bool {
		return v.State() == LikeState{Liked: false, Count: 0, Phase: optimistic.Idle}
	}, wait, tick)

	like, err := store.Get(ctx, schema.LikePath(p.ID, bob.ID))
	require.NoError(t, err)
	assert.False(t, like.Exists)
}

func TestLikeView_CounterBehindLike(t *testing.T) {
	f, store, srv := setup(t)
	ctx := context.Background()

	p, err := srv.CreatePost(ctx, alice, service.CreatePostParams{Title: "tteokbokki"})
	require.NoError(t, err)

	v := f.Like(ctx, bob, p.ID, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return !v.State().Loading }, wait, tick)

	// the like record is delivered before the post counter
	_, err = store.ApplyBatch(ctx, []docstore.Write{
		docstore.Set(schema.LikePath(p.ID, bob.ID), map[string]interface{}{schema.CreatedAt: docstore.ServerTimestamp}),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return v.State() == LikeState{Liked: true, Count: 1, Phase: optimistic.Idle}
	}, wait, tick)

	cv, err := store.ApplyBatch(ctx, []docstore.Write{
		docstore.Update(schema.PostPath(p.ID), map[string]interface{}{schema.PostLikesCount: docstore.Increment(1)}),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return v.post.State().Version >= cv }, wait, tick)
	assert.Equal(t, LikeState{Liked: true, Count: 1, Phase: optimistic.Idle}, v.State())
}

func TestLikeHistory(t *testing.T) {
	tt := []struct {
		name  string
		facts []likeFact
		at    docstore.Version
		liked bool
		ok    bool
	}{
		{name: "empty", at: 5},
		{name: "before first observation", facts: []likeFact{{version: 4, liked: true}}, at: 2, liked: true, ok: true},
		{name: "before own commit", facts: []likeFact{{version: 4, liked: true, commit: true}}, at: 2, liked: false, ok: true},
		{
			name:  "latest at or below version",
			facts: []likeFact{{version: 9, liked: false}, {version: 3, liked: false}, {version: 6, liked: true, commit: true}},
			at:    7,
			liked: true,
			ok:    true,
		},
		{
			name:  "exact version",
			facts: []likeFact{{version: 3, liked: true}, {version: 6, liked: false}},
			at:    6,
			liked: false,
			ok:    true,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			var h likeHistory
			for _, f := range tc.facts {
				h.add(f)
			}

			liked, ok := h.at(tc.at)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.liked, liked)
		})
	}

	var h likeHistory
	for i := 0; i < 3*maxLikeFacts; i++ {
		h.observe(docstore.Version(i), i%2 == 0)
	}
	assert.Len(t, h.facts, maxLikeFacts)
}

func TestLikeView_Self(t *testing.T) {
	f, store, srv := setup(t)
	ctx := context.Background()

	p, err := srv.CreatePost(ctx, alice, service.CreatePostParams{Title: "tteokbokki"})
	require.NoError(t, err)

	v := f.Like(ctx, alice, p.ID, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return !v.State().Loading }, wait, tick)

	before := store.Version()

	require.True(t, errors.Is(v.Toggle(ctx), service.ErrSelfAction))
	assert.Equal(t, before, store.Version())
	assert.Equal(t, LikeState{Liked: false, Phase: optimistic.Idle}, v.State())
}

func TestLikeView_Anonymous(t *testing.T) {
	f, _, srv := setup(t)
	ctx := context.Background()

	p, err := srv.CreatePost(ctx, alice, service.CreatePostParams{Title: "tteokbokki"})
	require.NoError(t, err)
	_, err = srv.SetLike(ctx, bob, p.ID, false)
	require.NoError(t, err)

	v := f.Like(ctx, entities.Identity{}, p.ID, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return !v.State().Loading }, wait, tick)
	assert.EqualValues(t, 1, v.State().Count)
	require.True(t, errors.Is(v.Toggle(ctx), service.ErrUnauthenticated))
}

func TestLikeView_Rollback(t *testing.T) {
	store := memory.New(memory.WithGuard(func(writes []docstore.Write, _ memory.Lookup) error {
		for _, w := range writes {
			if strings.Contains(w.Path, "/"+schema.Likes+"/") {
				return docstore.ErrPermissionDenied
			}
		}
		return nil
	}))
	srv := impl.New(store, nil)
	f := NewFactory(Config{Store: store, Service: srv})

	p, err := srv.CreatePost(context.Background(), alice, service.CreatePostParams{Title: "x"})
	require.NoError(t, err)

	v := f.Like(context.Background(), bob, p.ID, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return !v.State().Loading }, wait, tick)

	require.True(t, errors.Is(v.Toggle(context.Background()), docstore.ErrPermissionDenied))
	assert.Equal(t, LikeState{Liked: false, Phase: optimistic.Idle}, v.State())

	// the user may retry
	require.True(t, errors.Is(v.Toggle(context.Background()), docstore.ErrPermissionDenied))
}

func TestFollowView(t *testing.T) {
	f, _, srv := setup(t)
	ctx := context.Background()

	v := f.Follow(ctx, alice, bob.ID, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return !v.State().Loading }, wait, tick)

	require.NoError(t, v.Toggle(ctx))
	require.Eventually(t, func() bool {
		return v.State() == FollowState{Following: true, Phase: optimistic.Idle}
	}, wait, tick)

	ids, err := srv.MemberIDs(ctx, bob.ID, entities.Followers)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, ids)

	self := f.Follow(ctx, alice, alice.ID, nil)
	defer self.Close()

	require.True(t, errors.Is(self.Toggle(ctx), service.ErrSelfAction))
	assert.False(t, self.State().Following)
}

func TestCommentsView(t *testing.T) {
	f, _, srv := setup(t)
	ctx := context.Background()

	p, err := srv.CreatePost(ctx, alice, service.CreatePostParams{Title: "x"})
	require.NoError(t, err)

	v := f.Comments(ctx, p.ID, 0, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return !v.State().Loading }, wait, tick)
	assert.Empty(t, v.State().Comments)

	_, err = srv.AddComment(ctx, bob, p.ID, "nice")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(v.State().Comments) == 1 }, wait, tick)
	assert.Equal(t, "nice", v.State().Comments[0].Content)
	assert.True(t, errors.Is(v.Toggle(ctx), ErrNotToggleable))
}

func TestGuestbookView(t *testing.T) {
	f, store, _ := setup(t)
	ctx := context.Background()

	at := func(s int64) time.Time { return time.Unix(s, 0) }

	_, err := store.ApplyBatch(ctx, []docstore.Write{
		docstore.Set(schema.NotePath(alice.ID, "n5"), map[string]interface{}{schema.NotePinned: true, schema.NoteCreatedAt: at(5)}),
		docstore.Set(schema.NotePath(alice.ID, "n10"), map[string]interface{}{schema.NotePinned: false, schema.NoteCreatedAt: at(10)}),
		docstore.Set(schema.NotePath(alice.ID, "n2"), map[string]interface{}{schema.NotePinned: true, schema.NoteCreatedAt: at(2)}),
	})
	require.NoError(t, err)

	v := f.Guestbook(ctx, alice.ID, nil)
	defer v.Close()

	require.Eventually(t, func() bool { return len(v.State().Notes) == 3 }, wait, tick)

	notes := v.State().Notes
	assert.Equal(t, []string{"n5", "n2", "n10"}, []string{notes[0].ID, notes[1].ID, notes[2].ID})
}
