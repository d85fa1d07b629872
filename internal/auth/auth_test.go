package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ting-rn/ting-sync/internal/auth/mock"
	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/docstore/memory"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/localstate"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service/impl"
)

var alice = entities.Identity{ID: "alice", Email: "alice@ting.app", Provider: "google.com"}

func TestJWT(t *testing.T) {
	j, err := NewJWT("secret", time.Hour)
	require.NoError(t, err)

	token, err := j.Issue(alice)
	require.NoError(t, err)

	id, err := j.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, alice, id)

	other, err := NewJWT("other", time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(context.Background(), token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = j.Verify(context.Background(), "garbage")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWT_Expired(t *testing.T) {
	j, err := NewJWT("secret", time.Minute)
	require.NoError(t, err)

	token, err := j.Issue(entities.Identity{ID: "bob"})
	require.NoError(t, err)

	j.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err = j.Verify(context.Background(), token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWT_DefaultProvider(t *testing.T) {
	j, err := NewJWT("secret", 0)
	require.NoError(t, err)

	token, err := j.Issue(entities.Identity{ID: "bob"})
	require.NoError(t, err)

	id, err := j.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, id.Provider)

	_, err = NewJWT("", 0)
	assert.Error(t, err)
}

func TestSessions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	v := mock.NewMockVerifier(ctrl)
	v.EXPECT().Verify(gomock.Any(), "token").Return(alice, nil)

	s := NewSessions(v)

	var got, others []Event
	unsubscribe := s.Subscribe(alice.ID, func(e Event) { got = append(got, e) })
	defer s.Subscribe("bob", func(e Event) { others = append(others, e) })()

	id, err := s.SignIn(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, alice, id)

	s.SignOut(alice)
	unsubscribe()
	s.SignOut(alice)

	assert.Equal(t, []Event{{Kind: SignedIn, Identity: alice}, {Kind: SignedOut, Identity: alice}}, got)
	assert.Empty(t, others)
}

func TestBootstrap(t *testing.T) {
	j, err := NewJWT("secret", time.Hour)
	require.NoError(t, err)

	token := func(id string) string {
		s, err := j.Issue(entities.Identity{ID: id})
		require.NoError(t, err)
		return s
	}

	newToken, partialToken, doneToken := token("new"), token("partial"), token("done")

	store := memory.New()
	_, err = store.ApplyBatch(context.Background(), []docstore.Write{
		docstore.Set(schema.UserPath("done"), map[string]interface{}{schema.UserName: "done", schema.UserCountryCode: "KR"}),
		docstore.Set(schema.UserPath("partial"), map[string]interface{}{schema.UserName: "partial"}),
	})
	require.NoError(t, err)

	tt := []struct {
		name   string
		token  string
		cached string
		status Status
		cache  string
	}{
		{
			name:   "no token",
			status: Unauthenticated,
		},
		{
			name:   "invalid token",
			token:  "garbage",
			cached: "old",
			status: Unauthenticated,
		},
		{
			name:   "no user doc",
			token:  newToken,
			status: NeedsOnboarding,
			cache:  newToken,
		},
		{
			name:   "no country",
			token:  partialToken,
			status: NeedsOnboarding,
			cache:  partialToken,
		},
		{
			name:   "authenticated",
			token:  doneToken,
			status: Authenticated,
			cache:  doneToken,
		},
		{
			name:   "cached token",
			cached: doneToken,
			status: Authenticated,
			cache:  doneToken,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			state, err := localstate.Open(filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			defer state.Close()

			if tc.cached != "" {
				require.NoError(t, state.SetAuthToken(ctx, tc.cached))
			}

			b := NewBootstrapper(NewSessions(j), impl.New(store, nil), state)

			res, err := b.Bootstrap(ctx, tc.token)
			require.NoError(t, err)
			assert.Equal(t, tc.status, res.Status)
			assert.False(t, res.HasLoggedInBefore)

			cached, err := state.AuthToken(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.cache, cached)

			logged, err := state.HasLoggedInBefore(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.status != Unauthenticated, logged)
		})
	}
}

func TestBootstrap_SignOut(t *testing.T) {
	ctx := context.Background()

	j, err := NewJWT("secret", time.Hour)
	require.NoError(t, err)
	token, err := j.Issue(alice)
	require.NoError(t, err)

	state, err := localstate.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer state.Close()

	sessions := NewSessions(j)
	b := NewBootstrapper(sessions, impl.New(memory.New(), nil), state)

	_, err = b.Bootstrap(ctx, token)
	require.NoError(t, err)

	var signedOut bool
	defer sessions.Subscribe(alice.ID, func(e Event) { signedOut = e.Kind == SignedOut })()

	require.NoError(t, b.SignOut(ctx, alice))
	assert.True(t, signedOut)

	res, err := b.Bootstrap(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Unauthenticated, res.Status)
	assert.True(t, res.HasLoggedInBefore)
}
