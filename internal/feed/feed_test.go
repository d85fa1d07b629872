package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/docstore/memory"
	"github.com/ting-rn/ting-sync/internal/docstore/mock"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
)

var (
	viewer = entities.Identity{ID: "viewer"}
	epoch  = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	t     *testing.T
	store *memory.Store
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, store: memory.New()}
}

func (f *fixture) apply(writes ...docstore.Write) {
	_, err := f.store.ApplyBatch(context.Background(), writes)
	require.NoError(f.t, err)
}

func (f *fixture) user(uid string) {
	f.apply(docstore.Set(schema.UserPath(uid), map[string]interface{}{
		schema.UserName:  "name " + uid,
		schema.CreatedAt: epoch,
	}))
}

func (f *fixture) member(uid string, kind entities.MembershipKind, peer string) {
	f.apply(docstore.Set(schema.MemberPath(uid, kind, peer), map[string]interface{}{
		schema.CreatedAt: epoch,
	}))
}

type post struct {
	id         string
	owner      string
	minute     int
	likes      int64
	value      string
	region     string
	visibility entities.Visibility
	archived   bool
}

func (f *fixture) post(p post) {
	if p.visibility == "" {
		p.visibility = entities.PublicVisibility
	}

	f.apply(docstore.Set(schema.PostPath(p.id), map[string]interface{}{
		schema.PostUserID:     p.owner,
		schema.PostID:         p.id,
		schema.PostLikesCount: p.likes,
		schema.PostValue:      p.value,
		schema.PostRegion:     p.region,
		schema.PostVisibility: string(p.visibility),
		schema.PostArchived:   p.archived,
		schema.CreatedAt:      epoch.Add(time.Duration(p.minute) * time.Minute),
	}))
}

func ids(data []*entities.FeedData) []string {
	out := make([]string, len(data))
	for i, d := range data {
		out[i] = d.Post.ID
	}
	return out
}

func TestFeed_Fetch(t *testing.T) {
	f := newFixture(t)
	f.user("a")
	f.user("b")

	f.post(post{id: "p1", owner: "a", minute: 1, likes: 3, region: "seoul"})
	f.post(post{id: "p2", owner: "b", minute: 2, likes: 0, region: "busan"})
	f.post(post{id: "p3", owner: "a", minute: 3, likes: 7, value: WackValue, region: "seoul"})
	f.post(post{id: "p4", owner: "b", minute: 4, likes: 1, value: WackValue})
	f.post(post{id: "p5", owner: "a", minute: 5, likes: 9, archived: true})
	f.post(post{id: "p6", owner: "b", minute: 6, likes: 9, visibility: entities.FollowerVisibility})

	tt := []struct {
		name    string
		variant Variant
		limit   int

		ids []string
	}{
		{name: "realtime", variant: Variant{Kind: Realtime}, ids: []string{"p4", "p3", "p2", "p1"}},
		{name: "realtime limit", variant: Variant{Kind: Realtime}, limit: 2, ids: []string{"p4", "p3"}},
		{name: "realtime region", variant: Variant{Kind: Realtime, Region: "seoul"}, ids: []string{"p3", "p1"}},
		{name: "hot", variant: Variant{Kind: Hot}, ids: []string{"p3", "p1", "p4"}},
		{name: "wack", variant: Variant{Kind: Wack}, ids: []string{"p3", "p4"}},
		{name: "wack region", variant: Variant{Kind: Wack, Region: "seoul"}, ids: []string{"p3"}},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			data, err := New(f.store).Fetch(context.Background(), entities.Identity{}, tc.variant, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, tc.ids, ids(data))
		})
	}

	_, err := New(f.store).Fetch(context.Background(), viewer, Variant{Kind: "cold"}, 0)
	require.True(t, errors.Is(err, ErrUnknownKind))
}

func TestAssembler_Assemble(t *testing.T) {
	f := newFixture(t)
	f.user("a")
	f.post(post{id: "p1", owner: "a", likes: 100})

	f.apply(
		docstore.Set(schema.LikePath("p1", viewer.ID), schema.Membership()),
		docstore.Set(schema.LikePath("p1", "other"), schema.Membership()),
		docstore.Set(schema.CommentPath("p1", "c1"), map[string]interface{}{schema.CommentContent: "hi"}),
		docstore.Set(schema.PinPath(viewer.ID, "p1"), schema.Membership()),
	)

	p, err := f.store.Get(context.Background(), schema.PostPath("p1"))
	require.NoError(t, err)

	a := NewAssembler(f.store)

	fd, err := a.Assemble(context.Background(), viewer, schema.PostFromDoc(p))
	require.NoError(t, err)
	assert.Equal(t, "name a", fd.User.Name)
	assert.EqualValues(t, 2, fd.NumLikes)
	assert.EqualValues(t, 1, fd.NumComments)
	assert.True(t, fd.IsLikedByUser)
	assert.True(t, fd.IsPinned)

	fd, err = a.Assemble(context.Background(), entities.Identity{}, schema.PostFromDoc(p))
	require.NoError(t, err)
	assert.False(t, fd.IsLikedByUser)
	assert.False(t, fd.IsPinned)
}

func TestAssembler_Assemble_MissingAuthor(t *testing.T) {
	f := newFixture(t)
	f.user("a")
	f.post(post{id: "p1", owner: "a", minute: 1})
	f.post(post{id: "p2", owner: "ghost", minute: 2})

	_, err := New(f.store).Fetch(context.Background(), viewer, Variant{Kind: Realtime}, 0)
	require.True(t, errors.Is(err, ErrAuthorNotFound))
}

func TestAssembler_Assemble_Parallel(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)

	// every read waits until all five are in flight
	var wg sync.WaitGroup
	wg.Add(5)
	arrive := func() {
		wg.Done()
		wg.Wait()
	}

	store.EXPECT().Get(gomock.Any(), gomock.Any()).Times(3).DoAndReturn(func(_ context.Context, path string) (*docstore.Document, error) {
		arrive()
		return &docstore.Document{Path: path, Exists: true}, nil
	})
	store.EXPECT().Count(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(func(context.Context, docstore.Query) (int64, error) {
		arrive()
		return 1, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := NewAssembler(store).Assemble(context.Background(), viewer, &entities.Post{ID: "p1", OwnerID: "a"})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reads were not issued in parallel")
	}
}

func TestFeed_Personal(t *testing.T) {
	f := newFixture(t)

	// 23 followed users span three batches
	for i := 0; i < 23; i++ {
		uid := fmt.Sprintf("u%02d", i)
		f.user(uid)
		f.member(viewer.ID, entities.Following, uid)
		f.post(post{id: "p" + uid, owner: uid, minute: i})
	}

	f.user("blocked")
	f.member(viewer.ID, entities.Following, "blocked")
	f.member(viewer.ID, entities.Blocks, "blocked")
	f.post(post{id: "pblocked", owner: "blocked", minute: 100})

	f.user("stranger")
	f.post(post{id: "pstranger", owner: "stranger", minute: 101})

	f.post(post{id: "pprivate", owner: "u01", minute: 102, visibility: entities.PrivateVisibility})
	f.post(post{id: "parchived", owner: "u02", minute: 103, archived: true})

	before := f.store.QueryCount()

	data, err := New(f.store).Fetch(context.Background(), viewer, Variant{Kind: Personal}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"pu22", "pu21", "pu20", "pu19", "pu18"}, ids(data))

	// following, blocks and one query per batch
	assert.EqualValues(t, 2+3, f.store.QueryCount()-before)

	data, err = New(f.store, WithBatchSize(5)).Fetch(context.Background(), viewer, Variant{Kind: Personal}, 0)
	require.NoError(t, err)
	assert.Len(t, data, 23)

	for i := 1; i < len(data); i++ {
		assert.False(t, data[i].Post.CreatedAt.After(data[i-1].Post.CreatedAt))
	}
}

func TestFeed_Personal_NoFollowing(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)

	store.EXPECT().Query(gomock.Any(), docstore.Collection(schema.MembersPath(viewer.ID, entities.Following)).
		OrderBy(schema.CreatedAt, docstore.Desc),
	).Return([]*docstore.Document{}, nil)

	data, err := New(store).Fetch(context.Background(), viewer, Variant{Kind: Personal}, 0)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFeed_Personal_OnlyBlocked(t *testing.T) {
	f := newFixture(t)
	f.user("b")
	f.member(viewer.ID, entities.Following, "b")
	f.member(viewer.ID, entities.Blocks, "b")
	f.post(post{id: "p1", owner: "b"})

	before := f.store.QueryCount()

	data, err := New(f.store).Fetch(context.Background(), viewer, Variant{Kind: Personal}, 0)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.EqualValues(t, 2, f.store.QueryCount()-before)
}

func TestFeed_Personal_NoViewer(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := New(mock.NewMockStore(ctrl)).Fetch(context.Background(), entities.Identity{}, Variant{Kind: Personal}, 0)
	require.True(t, errors.Is(err, ErrNoViewer))
}

func TestFeed_Personal_BatchError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mock.NewMockStore(ctrl)

	store.EXPECT().Query(gomock.Any(), gomock.Any()).Return([]*docstore.Document{{ID: "a"}}, nil)
	store.EXPECT().Query(gomock.Any(), gomock.Any()).Return([]*docstore.Document{}, nil)
	store.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, docstore.ErrPermissionDenied)

	_, err := New(store).Fetch(context.Background(), viewer, Variant{Kind: Personal}, 0)
	require.True(t, errors.Is(err, docstore.ErrPermissionDenied))
}
