//+build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

// The tests run against the firestore emulator, FIRESTORE_EMULATOR_HOST must be set.
func newStore(t *testing.T) *Store {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST is not set")
	}

	c, err := firestore.NewClient(context.Background(), "ting-test")
	require.NoError(t, err)

	s := New(c)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore_Emulator(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	post := "posts/" + docstore.NewID()

	_, err := s.ApplyBatch(ctx, []docstore.Write{
		docstore.Set(post, map[string]interface{}{"region": "Seoul", "likes_count": 0, "created_at": docstore.ServerTimestamp}),
	})
	require.NoError(t, err)

	tv, err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		d, err := tx.Get(post)
		if err != nil {
			return err
		}
		if !d.Exists {
			return docstore.ErrNotFound
		}
		tx.Apply(docstore.Update(post, map[string]interface{}{"likes_count": docstore.Increment(1)}))
		return nil
	})
	require.NoError(t, err)

	d, err := s.Get(ctx, post)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d.Data["likes_count"])
	// snapshots read after the commit never predate the transaction version
	assert.LessOrEqual(t, uint64(tv), uint64(d.Version))

	n, err := s.Count(ctx, docstore.Collection("posts").Where("region", docstore.Equal, "Seoul"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	wctx, cancel := context.WithCancel(ctx)
	it := s.WatchDocument(wctx, post)

	first, err := it.Next()
	require.NoError(t, err)
	assert.True(t, first.Exists)

	_, err = s.ApplyBatch(ctx, []docstore.Write{docstore.Delete(post)})
	require.NoError(t, err)

	second, err := it.Next()
	require.NoError(t, err)
	assert.False(t, second.Exists)

	cancel()
	it.Stop()

	_, err = it.Next()
	assert.True(t, errors.Is(err, docstore.ErrIteratorDone))
}
