package postgres

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

func TestSelectQuery(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("KST", 9*3600))

	tt := []struct {
		name string
		q    docstore.Query
		sql  string
		args []interface{}
		err  error
	}{
		{
			name: "collection",
			q:    docstore.Collection("posts"),
			sql:  "SELECT id, data, version FROM documents WHERE collection = $1 ORDER BY id",
			args: []interface{}{"posts"},
		},
		{
			name: "equal and order",
			q: docstore.Collection("posts").
				Where("region", docstore.Equal, "Seoul").
				OrderBy("created_at", docstore.Desc).
				Limit(20),
			sql: "SELECT id, data, version FROM documents WHERE collection = $1 AND data->'region' = $2::jsonb " +
				"AND data ? 'created_at' ORDER BY data->'created_at' DESC, id DESC LIMIT $3",
			args: []interface{}{"posts", `"Seoul"`, 20},
		},
		{
			name: "range on time",
			q:    docstore.Collection("posts").Where("created_at", docstore.Greater, at),
			sql: "SELECT id, data, version FROM documents WHERE collection = $1 " +
				"AND jsonb_typeof(data->'created_at') = $2 AND data->'created_at' > $3::jsonb ORDER BY id",
			args: []interface{}{"posts", "string", `"2024-03-01T03:00:00.000000000Z"`},
		},
		{
			name: "document id in",
			q:    docstore.Collection("posts").Where(docstore.DocumentID, docstore.In, []string{"a", "b"}),
			sql:  "SELECT id, data, version FROM documents WHERE collection = $1 AND id = ANY($2) ORDER BY id",
			args: []interface{}{"posts", pq.Array([]string{"a", "b"})},
		},
		{
			name: "field in",
			q:    docstore.Collection("users/u/followers").Where("rank", docstore.In, []int{1, 2}),
			sql:  "SELECT id, data, version FROM documents WHERE collection = $1 AND data->'rank' = ANY($2::jsonb[]) ORDER BY id",
			args: []interface{}{"users/u/followers", pq.Array([]string{"1", "2"})},
		},
		{
			name: "bad field",
			q:    docstore.Collection("posts").Where("x'; DROP TABLE documents; --", docstore.Equal, 1),
			err:  docstore.ErrInvalidQuery,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			sql, args, err := selectQuery(tc.q)
			if tc.err != nil {
				require.True(t, errors.Is(err, tc.err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.sql, sql)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestCountQuery(t *testing.T) {
	sql, args, err := countQuery(docstore.Collection("posts").Where("user_id", docstore.Equal, "u").Limit(5))
	require.NoError(t, err)

	assert.Equal(t, "SELECT count(*) FROM (SELECT 1 FROM documents WHERE collection = $1 AND data->'user_id' = $2::jsonb LIMIT $3) t", sql)
	assert.Equal(t, []interface{}{"posts", `"u"`, 5}, args)
}

func newMock(t *testing.T, opts ...Option) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(db, nil, opts...), mock
}

func TestStore_Get(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT v FROM store_version`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(7))
	mock.ExpectQuery(`SELECT id, data, version FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("posts", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}).
			AddRow("p1", []byte(`{"title":"tteokbokki","likes_count":3}`), 5))
	mock.ExpectCommit()

	d, err := s.Get(context.Background(), "posts/p1")
	require.NoError(t, err)

	assert.Equal(t, &docstore.Document{
		Path:    "posts/p1",
		ID:      "p1",
		Data:    map[string]interface{}{"title": "tteokbokki", "likes_count": float64(3)},
		Exists:  true,
		Version: 7,
	}, d)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_Missing(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT v FROM store_version`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(7))
	mock.ExpectQuery(`SELECT id, data, version FROM documents`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}))
	mock.ExpectCommit()

	d, err := s.Get(context.Background(), "posts/p1")
	require.NoError(t, err)
	assert.False(t, d.Exists)
	assert.EqualValues(t, 7, d.Version)

	_, err = s.Get(context.Background(), "posts")
	assert.True(t, errors.Is(err, docstore.ErrInvalidPath))
}

func TestStore_ApplyBatch(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s, mock := newMock(t, WithClock(func() time.Time { return now }))

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE store_version SET v = v \+ 1 RETURNING v`).
		WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(3))
	mock.ExpectQuery(`SELECT id, data, version FROM documents WHERE collection = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("posts", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}).AddRow("p1", []byte(`{"likes_count":1}`), 2))
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("posts/p1/likes", "u").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("posts", "p1", []byte(`{"likes_count":2}`), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("posts/p1/likes", "u", []byte(`{"created_at":"2024-03-01T00:00:00.000000000Z"}`), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := s.ApplyBatch(context.Background(), []docstore.Write{
		docstore.Update("posts/p1", map[string]interface{}{"likes_count": docstore.Increment(1)}),
		docstore.Set("posts/p1/likes/u", map[string]interface{}{"created_at": docstore.ServerTimestamp}),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ApplyBatch_UpdateMissing(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE store_version`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(3))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}))
	mock.ExpectRollback()

	_, err := s.ApplyBatch(context.Background(), []docstore.Write{
		docstore.Update("posts/p1", map[string]interface{}{"title": "x"}),
	})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RunTransaction_Conflict(t *testing.T) {
	s, mock := newMock(t, WithMaxRetries(2), WithRetryDelay(time.Millisecond))

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE store_version`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(3))
		mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}))
		mock.ExpectExec(`DELETE FROM documents`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit().WillReturnError(&pq.Error{Code: serializationFailure})
	}

	var calls int32
	_, err := s.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		atomic.AddInt32(&calls, 1)
		tx.Apply(docstore.Delete("posts/p1"))
		return nil
	})

	assert.True(t, errors.Is(err, docstore.ErrAborted))
	assert.EqualValues(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RunTransaction_ConflictThenCommit(t *testing.T) {
	s, mock := newMock(t, WithRetryDelay(time.Millisecond))

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE store_version`).WillReturnError(&pq.Error{Code: serializationFailure})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE store_version`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(4))
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id", "data", "version"}))
	mock.ExpectExec(`DELETE FROM documents`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	v, err := s.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		tx.Apply(docstore.Delete("posts/p1"))
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RunTransaction_CanceledDuringBackoff(t *testing.T) {
	s, mock := newMock(t, WithRetryDelay(time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE store_version`).WillReturnError(&pq.Error{Code: serializationFailure})
	mock.ExpectRollback()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		tx.Apply(docstore.Delete("posts/p1"))
		return nil
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackoff(t *testing.T) {
	tt := []struct {
		name    string
		base    time.Duration
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{name: "disabled", base: 0, attempt: 3, min: 0, max: 0},
		{name: "first", base: 10 * time.Millisecond, attempt: 1, min: 5 * time.Millisecond, max: 10 * time.Millisecond},
		{name: "third", base: 10 * time.Millisecond, attempt: 3, min: 20 * time.Millisecond, max: 40 * time.Millisecond},
		{name: "capped", base: 10 * time.Millisecond, attempt: 30, min: maxRetryDelay / 2, max: maxRetryDelay},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			for n := 0; n < 50; n++ {
				d := backoff(tc.base, tc.attempt)
				assert.GreaterOrEqual(t, int64(d), int64(tc.min))
				assert.LessOrEqual(t, int64(d), int64(tc.max))
			}
		})
	}
}

func TestStore_RunTransaction_Empty(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT v FROM store_version`).WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(9))
	mock.ExpectCommit()

	v, err := s.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 9, v)
}

func TestStore_PermissionDenied(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE store_version`).WillReturnError(&pq.Error{Code: insufficientPrivilege, Message: "denied"})
	mock.ExpectRollback()

	_, err := s.ApplyBatch(context.Background(), []docstore.Write{docstore.Delete("posts/p1")})
	assert.True(t, errors.Is(err, docstore.ErrPermissionDenied))
}

type fakeListener struct {
	ch chan *pq.Notification
}

func (l *fakeListener) Listen(string) error                          { return nil }
func (l *fakeListener) NotificationChannel() <-chan *pq.Notification { return l.ch }
func (l *fakeListener) Ping() error                                  { return nil }
func (l *fakeListener) Close() error                                 { return nil }

func TestHub(t *testing.T) {
	l := &fakeListener{ch: make(chan *pq.Notification)}
	h := newHub(l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.run(ctx) // nolint:errcheck

	var content atomic.Value
	content.Store("a")

	var loads int32
	w := h.watch(ctx, "posts", func(ctx context.Context) (interface{}, string, error) {
		atomic.AddInt32(&loads, 1)
		c := content.Load().(string)
		return c, c, nil
	}, nil)

	v, err := w.next()
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	got := make(chan interface{}, 1)
	go func() {
		v, _ := w.next()
		got <- v
	}()

	// other collection is ignored, unchanged content is skipped
	l.ch <- &pq.Notification{Channel: Channel, Extra: "users"}
	l.ch <- &pq.Notification{Channel: Channel, Extra: "posts"}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&loads) == 2 }, time.Second, time.Millisecond)

	content.Store("b")
	l.ch <- nil

	select {
	case v := <-got:
		assert.Equal(t, "b", v)
	case <-time.After(5 * time.Second):
		t.Fatal("watch was not notified")
	}

	w.stop()
	_, err = w.next()
	assert.True(t, errors.Is(err, docstore.ErrIteratorDone))
}

func TestHub_InvalidQuery(t *testing.T) {
	h := newHub(nil)

	it := queryIterator{h.watch(context.Background(), "posts", nil, docstore.ErrInvalidQuery)}

	_, err := it.Next()
	assert.True(t, errors.Is(err, docstore.ErrInvalidQuery))

	_, err = it.Next()
	assert.True(t, errors.Is(err, docstore.ErrIteratorDone))
}
