// Package postgres is implementation of docstore over a jsonb table with LISTEN/NOTIFY pushes.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

var log = logrus.WithField("layer", "docstore").WithField("package", "postgres")

var errReadAfterWrite = errors.New("transaction reads must happen before writes")

const (
	serializationFailure  = "40001"
	deadlockDetected      = "40P01"
	insufficientPrivilege = "42501"
)

// DefaultMaxRetries is the number of attempts of a transaction which conflicts with another one.
const DefaultMaxRetries = 10

// DefaultRetryDelay is the base delay of the jittered exponential backoff between conflicting attempts.
const DefaultRetryDelay = 5 * time.Millisecond

const maxRetryDelay = 250 * time.Millisecond

type documentDTO struct {
	ID      string `db:"id"`
	Data    []byte `db:"data"`
	Version int64  `db:"version"`
}

// Option ...
type Option func(s *Store)

// WithClock sets time source for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithMaxRetries ...
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryDelay sets base backoff delay, zero retries immediately.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// Store ...
type Store struct {
	db         *sqlx.DB
	hub        *hub
	now        func() time.Time
	maxRetries int
	retryDelay time.Duration
}

// New creates new instance of Store. Watches are pushed by l; when l is nil they only get the initial snapshot.
func New(db *sql.DB, l Listener, opts ...Option) *Store {
	s := &Store{
		db:         sqlx.NewDb(db, "postgres"),
		hub:        newHub(l),
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// Run dispatches change notifications to watches until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	return s.hub.run(ctx)
}

// Name ...
func (s *Store) Name() string {
	return "postgres"
}

// Ping ...
func (s *Store) Ping(ctx context.Context) (interface{}, error) {
	var v int64
	if err := sqlx.GetContext(ctx, s.db, &v, `SELECT v FROM store_version`); err != nil {
		return nil, fmt.Errorf("failed to get version: %w", translate(err))
	}

	return map[string]interface{}{"version": v}, nil
}

// Get ...
func (s *Store) Get(ctx context.Context, path string) (*docstore.Document, error) {
	collection, id, err := docstore.Split(path)
	if err != nil {
		return nil, err
	}

	var d *docstore.Document
	if err := s.read(ctx, func(tx *sqlx.Tx, v docstore.Version) error {
		doc, err := get(ctx, tx, collection, id, false)
		if err != nil {
			return err
		}
		doc.Path, doc.Version = path, v
		d = doc
		return nil
	}); err != nil {
		return nil, err
	}

	return d, nil
}

// Query ...
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	snap, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return snap.Docs, nil
}

func (s *Store) query(ctx context.Context, q docstore.Query) (*docstore.QuerySnapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	stmt, a, err := selectQuery(q)
	if err != nil {
		return nil, err
	}

	snap := &docstore.QuerySnapshot{}
	err = s.read(ctx, func(tx *sqlx.Tx, v docstore.Version) error {
		var dtos []documentDTO
		if err := sqlx.SelectContext(ctx, tx, &dtos, stmt, a...); err != nil {
			return fmt.Errorf("failed to query: %w", translate(err))
		}

		snap.Version = v
		snap.Docs = make([]*docstore.Document, 0, len(dtos))
		for _, dto := range dtos {
			d, err := toDocument(q.Collection, dto, v)
			if err != nil {
				return err
			}
			snap.Docs = append(snap.Docs, d)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return snap, nil
}

// Count ...
func (s *Store) Count(ctx context.Context, q docstore.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	stmt, a, err := countQuery(q)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := sqlx.GetContext(ctx, s.db, &n, stmt, a...); err != nil {
		return 0, fmt.Errorf("failed to count: %w", translate(err))
	}

	return n, nil
}

// RunTransaction runs f in a serializable transaction. f is called again when the transaction conflicts.
func (s *Store) RunTransaction(ctx context.Context, f func(ctx context.Context, tx docstore.Tx) error) (docstore.Version, error) {
	return s.write(ctx, func(t *tx) error {
		return f(ctx, t)
	})
}

// ApplyBatch commits writes atomically.
func (s *Store) ApplyBatch(ctx context.Context, writes []docstore.Write) (docstore.Version, error) {
	return s.write(ctx, func(t *tx) error {
		t.Apply(writes...)
		return nil
	})
}

// WatchDocument ...
func (s *Store) WatchDocument(ctx context.Context, path string) docstore.DocumentIterator {
	collection, _, err := docstore.Split(path)

	w := s.hub.watch(ctx, collection, func(ctx context.Context) (interface{}, string, error) {
		d, err := s.Get(ctx, path)
		if err != nil {
			return nil, "", err
		}
		return d, fingerprint([]*docstore.Document{d}), nil
	}, err)

	return documentIterator{w}
}

// WatchQuery ...
func (s *Store) WatchQuery(ctx context.Context, q docstore.Query) docstore.QueryIterator {
	w := s.hub.watch(ctx, q.Collection, func(ctx context.Context) (interface{}, string, error) {
		snap, err := s.query(ctx, q)
		if err != nil {
			return nil, "", err
		}
		return snap, fingerprint(snap.Docs), nil
	}, q.Validate())

	return queryIterator{w}
}

// read runs f in a read-only snapshot together with the version the snapshot reflects.
func (s *Store) read(ctx context.Context, f func(tx *sqlx.Tx, v docstore.Version) error) error {
	t, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to create tx: %w", translate(err))
	}

	var v int64
	if err := sqlx.GetContext(ctx, t, &v, `SELECT v FROM store_version`); err != nil {
		rollback(t)
		return fmt.Errorf("failed to get version: %w", translate(err))
	}

	if err := f(t, docstore.Version(v)); err != nil {
		rollback(t)
		return err
	}

	if err := t.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", translate(err))
	}

	return nil
}

func (s *Store) write(ctx context.Context, f func(t *tx) error) (docstore.Version, error) {
	for attempt := 1; ; attempt++ {
		v, err := s.attempt(ctx, f)
		if !retryable(err) {
			return v, err
		}

		if attempt >= s.maxRetries {
			return 0, fmt.Errorf("%w: %d attempts: %s", docstore.ErrAborted, attempt, err.Error())
		}

		d := backoff(s.retryDelay, attempt)
		log.WithError(err).WithField("attempt", attempt).WithField("delay", d).Debug("transaction conflict, retrying")

		if err := sleep(ctx, d); err != nil {
			return 0, err
		}
	}
}

// backoff returns a random delay in [d/2, d] where d doubles per attempt up to maxRetryDelay.
// Every write bumps the single version row, so concurrent writers conflict and must spread out.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	d := base
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	if d > maxRetryDelay {
		d = maxRetryDelay
	}

	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Store) attempt(ctx context.Context, f func(t *tx) error) (docstore.Version, error) {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("failed to create tx: %w", translate(err))
	}

	t := &tx{ctx: ctx, tx: sqlTx}

	v, err := func() (docstore.Version, error) {
		if err := f(t); err != nil {
			return 0, err
		}
		if t.err != nil {
			return 0, t.err
		}
		return t.commit(s.now())
	}()
	if err != nil {
		rollback(sqlTx)
		return 0, err
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit tx: %w", translate(err))
	}

	return v, nil
}

type tx struct {
	ctx    context.Context
	tx     *sqlx.Tx
	writes []docstore.Write
	err    error
}

func (t *tx) Get(path string) (*docstore.Document, error) {
	if len(t.writes) > 0 {
		t.err = errReadAfterWrite
		return nil, t.err
	}

	collection, id, err := docstore.Split(path)
	if err != nil {
		return nil, err
	}

	d, err := get(t.ctx, t.tx, collection, id, false)
	if err != nil {
		return nil, err
	}
	d.Path = path

	return d, nil
}

func (t *tx) Apply(writes ...docstore.Write) {
	t.writes = append(t.writes, writes...)
}

type staged struct {
	collection string
	id         string
	data       map[string]interface{}
	exists     bool
}

// commit applies buffered writes under the next version. A commit without writes returns current version.
func (t *tx) commit(now time.Time) (docstore.Version, error) {
	var v int64

	if len(t.writes) == 0 {
		if err := sqlx.GetContext(t.ctx, t.tx, &v, `SELECT v FROM store_version`); err != nil {
			return 0, fmt.Errorf("failed to get version: %w", translate(err))
		}
		return docstore.Version(v), nil
	}

	if err := sqlx.GetContext(t.ctx, t.tx, &v, `UPDATE store_version SET v = v + 1 RETURNING v`); err != nil {
		return 0, fmt.Errorf("failed to bump version: %w", translate(err))
	}

	changes := make(map[string]*staged, len(t.writes))
	order := make([]string, 0, len(t.writes))

	for _, w := range t.writes {
		c, ok := changes[w.Path]
		if !ok {
			collection, id, err := docstore.Split(w.Path)
			if err != nil {
				return 0, err
			}

			d, err := get(t.ctx, t.tx, collection, id, true)
			if err != nil {
				return 0, err
			}

			c = &staged{collection: collection, id: id, data: d.Data, exists: d.Exists}
			changes[w.Path] = c
			order = append(order, w.Path)
		}

		data, exists, err := docstore.Apply(c.data, c.exists, w, now)
		if err != nil {
			return 0, err
		}
		c.data, c.exists = data, exists
	}

	for _, p := range order {
		c := changes[p]

		if !c.exists {
			if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`,
				c.collection, c.id); err != nil {
				return 0, fmt.Errorf("failed to delete %s: %w", p, translate(err))
			}
			continue
		}

		b, err := encode(c.data)
		if err != nil {
			return 0, err
		}

		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO documents (collection, id, data, version) VALUES ($1, $2, $3, $4)
			ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, version = EXCLUDED.version
		`, c.collection, c.id, b, v); err != nil {
			return 0, fmt.Errorf("failed to upsert %s: %w", p, translate(err))
		}
	}

	return docstore.Version(v), nil
}

func get(ctx context.Context, ext sqlx.QueryerContext, collection, id string, lock bool) (*docstore.Document, error) {
	stmt := `SELECT id, data, version FROM documents WHERE collection = $1 AND id = $2`
	if lock {
		stmt += ` FOR UPDATE`
	}

	var dto documentDTO
	if err := sqlx.GetContext(ctx, ext, &dto, stmt, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &docstore.Document{Path: docstore.Join(collection, id), ID: id}, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", translate(err))
	}

	return toDocument(collection, dto, 0)
}

func toDocument(collection string, dto documentDTO, v docstore.Version) (*docstore.Document, error) {
	data, err := decode(dto.Data)
	if err != nil {
		return nil, err
	}

	if data == nil {
		data = map[string]interface{}{}
	}

	return &docstore.Document{
		Path:    docstore.Join(collection, dto.ID),
		ID:      dto.ID,
		Data:    data,
		Exists:  true,
		Version: v,
	}, nil
}

func rollback(t *sqlx.Tx) {
	if err := t.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.WithError(err).Error("failed to rollback tx")
	}
}

// translate maps postgres errors to docstore errors.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == insufficientPrivilege {
		return fmt.Errorf("%w: %s", docstore.ErrPermissionDenied, pqErr.Message)
	}

	return err
}

func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == serializationFailure || pqErr.Code == deadlockDetected
	}
	return false
}
