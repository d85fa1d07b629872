package firestore

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

func TestTranslate(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: status.Error(codes.NotFound, "x"), want: docstore.ErrNotFound},
		{name: "permission denied", err: status.Error(codes.PermissionDenied, "x"), want: docstore.ErrPermissionDenied},
		{name: "aborted", err: status.Error(codes.Aborted, "x"), want: docstore.ErrAborted},
		{name: "missing index", err: status.Error(codes.FailedPrecondition, "x"), want: docstore.ErrInvalidQuery},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(translate(tc.err), tc.want))
		})
	}

	plain := errors.New("plain")
	assert.Equal(t, plain, translate(plain))
	assert.NoError(t, translate(nil))
}

func TestFields(t *testing.T) {
	out := fields(map[string]interface{}{
		"title":       "x",
		"likes_count": docstore.Increment(-1),
		"created_at":  docstore.ServerTimestamp,
	})

	assert.Equal(t, "x", out["title"])
	assert.Equal(t, firestore.ServerTimestamp, out["created_at"])
	assert.Equal(t, firestore.Increment(int64(-1)), out["likes_count"])

	assert.Len(t, updates(out), 3)
}

func TestVersion(t *testing.T) {
	assert.Zero(t, version(time.Time{}))

	a := time.Date(2024, 1, 1, 0, 0, 0, 1, time.UTC)
	assert.Less(t, uint64(version(a)), uint64(version(a.Add(time.Nanosecond))))
}

func TestToDocument(t *testing.T) {
	d := toDocument("posts/p", "p", nil)
	assert.Equal(t, &docstore.Document{Path: "posts/p", ID: "p"}, d)
}

func TestLatest(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tt := []struct {
		name  string
		snaps []*firestore.DocumentSnapshot
		want  time.Time
	}{
		{
			name:  "update time wins over read time",
			snaps: []*firestore.DocumentSnapshot{{UpdateTime: base, ReadTime: base.Add(time.Second)}},
			want:  base,
		},
		{
			name: "newest of several",
			snaps: []*firestore.DocumentSnapshot{
				{UpdateTime: base.Add(time.Millisecond), ReadTime: base.Add(time.Second)},
				{UpdateTime: base, ReadTime: base.Add(time.Second)},
			},
			want: base.Add(time.Millisecond),
		},
		{
			name:  "deleted document",
			snaps: []*firestore.DocumentSnapshot{{ReadTime: base.Add(time.Second)}, nil},
			want:  base.Add(time.Second),
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, version(tc.want), latest(tc.snaps))
		})
	}
}
