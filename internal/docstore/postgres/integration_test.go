//+build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	m "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

var (
	db  *sql.DB
	dsn string
	ctx = context.Background()
	s   *Store
)

func TestMain(m *testing.M) {
	shutdown := setup()

	s = New(db, NewListener(dsn))

	runCtx, cancel := context.WithCancel(ctx)
	go s.Run(runCtx) // nolint:errcheck

	code := m.Run()
	cancel()
	shutdown()
	os.Exit(code)
}

func setup() func() {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:12",
		Env:          map[string]string{"POSTGRES_PASSWORD": "root"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp"),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
	})
	if err != nil {
		logrus.WithError(err).Fatalf("failed to create container")
	}

	if err := c.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to start container")
	}

	host, err := c.Host(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to get host")
	}

	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		logrus.WithError(err).Fatal("failed to map port")
	}

	dsn = fmt.Sprintf("host=%s port=%d user=postgres password=root sslmode=disable", host, port.Int())

	db, err = sql.Open("postgres", dsn)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open connection")
	}

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	migrate("postgres", "root", host, "postgres", port.Int())

	return func() {
		if c != nil {
			c.Terminate(ctx)
		}
	}
}

func migrate(username, password, hostname, dbname string, port int) {
	_, currFile, _, ok := runtime.Caller(0)
	if !ok {
		logrus.Fatal("failed to get current file location")
	}

	migrations := filepath.Join(currFile, "../../../../scripts/migrations/postgres/")

	migrator, err := m.New(
		fmt.Sprintf("file://%s", migrations),
		fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			username, password, hostname, port, dbname),
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		logrus.WithError(err).Fatal("failed to migrate")
	}
}

func cleanup(t *testing.T) {
	t.Cleanup(func() {
		_, err := db.Exec(`DELETE FROM documents`)
		require.NoError(t, err)
	})
}

func TestStore_Documents(t *testing.T) {
	cleanup(t)

	v1, err := s.ApplyBatch(ctx, []docstore.Write{
		docstore.Set("posts/p1", map[string]interface{}{"title": "a", "created_at": docstore.ServerTimestamp}),
	})
	require.NoError(t, err)

	v2, err := s.ApplyBatch(ctx, []docstore.Write{
		docstore.Merge("posts/p1", map[string]interface{}{"likes_count": docstore.Increment(2)}),
	})
	require.NoError(t, err)
	assert.Greater(t, uint64(v2), uint64(v1))

	d, err := s.Get(ctx, "posts/p1")
	require.NoError(t, err)
	assert.True(t, d.Exists)
	assert.Equal(t, "a", d.Data["title"])
	assert.EqualValues(t, 2, d.Data["likes_count"])
	assert.GreaterOrEqual(t, uint64(d.Version), uint64(v2))

	_, err = s.ApplyBatch(ctx, []docstore.Write{docstore.Update("posts/missing", map[string]interface{}{"x": 1})})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))

	_, err = s.ApplyBatch(ctx, []docstore.Write{docstore.Delete("posts/p1")})
	require.NoError(t, err)

	d, err = s.Get(ctx, "posts/p1")
	require.NoError(t, err)
	assert.False(t, d.Exists)
}

func TestStore_Query(t *testing.T) {
	cleanup(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var writes []docstore.Write
	for i := 0; i < 12; i++ {
		writes = append(writes, docstore.Set(fmt.Sprintf("posts/p%02d", i), map[string]interface{}{
			"region":     []string{"Seoul", "Busan"}[i%2],
			"created_at": base.Add(time.Duration(i) * time.Hour),
			"likes":      i,
		}))
	}
	writes = append(writes, docstore.Set("posts/undated", map[string]interface{}{"region": "Seoul"}))

	_, err := s.ApplyBatch(ctx, writes)
	require.NoError(t, err)

	docs, err := s.Query(ctx, docstore.Collection("posts").
		Where("region", docstore.Equal, "Seoul").
		OrderBy("created_at", docstore.Desc).
		Limit(3))
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"p10", "p08", "p06"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	docs, err = s.Query(ctx, docstore.Collection("posts").Where("likes", docstore.GreaterOrEqual, 10))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.Query(ctx, docstore.Collection("posts").Where(docstore.DocumentID, docstore.In, []string{"p01", "p03", "nope"}))
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	n, err := s.Count(ctx, docstore.Collection("posts").Where("region", docstore.Equal, "Seoul"))
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}

func TestStore_RunTransaction(t *testing.T) {
	cleanup(t)

	// every concurrent writer conflicts on the version row, one wins per round
	s := New(db, nil, WithMaxRetries(50))

	_, err := s.ApplyBatch(ctx, []docstore.Write{docstore.Set("posts/p", map[string]interface{}{"likes_count": 0})})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
				d, err := tx.Get("posts/p")
				if err != nil {
					return err
				}
				tx.Apply(docstore.Update("posts/p", map[string]interface{}{"likes_count": d.Data["likes_count"].(float64) + 1}))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	d, err := s.Get(ctx, "posts/p")
	require.NoError(t, err)
	assert.EqualValues(t, 10, d.Data["likes_count"])
}

func TestStore_Watch(t *testing.T) {
	cleanup(t)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	it := s.WatchQuery(wctx, docstore.Collection("posts/p/likes"))
	defer it.Stop()

	snap, err := it.Next()
	require.NoError(t, err)
	assert.Empty(t, snap.Docs)

	v, err := s.ApplyBatch(ctx, []docstore.Write{docstore.Set("posts/p/likes/u", map[string]interface{}{"created_at": docstore.ServerTimestamp})})
	require.NoError(t, err)

	snap, err = it.Next()
	require.NoError(t, err)
	require.Len(t, snap.Docs, 1)
	assert.GreaterOrEqual(t, uint64(snap.Version), uint64(v))

	cancel()
	_, err = it.Next()
	assert.True(t, errors.Is(err, docstore.ErrIteratorDone))
}
