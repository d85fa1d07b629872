// Package memory is an in-process implementation of the document store with live queries.
// It is used for local development and as a test double.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

var log = logrus.WithField("layer", "docstore").WithField("package", "memory")

var errReadAfterWrite = errors.New("transaction reads must precede writes")

// Lookup reads committed document data. It is passed to guards.
type Lookup func(path string) (map[string]interface{}, bool)

// Guard decides whether the writes may be committed, like backend security rules do.
type Guard func(writes []docstore.Write, get Lookup) error

// Option ...
type Option func(s *Store)

// WithGuard ...
func WithGuard(g Guard) Option {
	return func(s *Store) {
		s.guard = g
	}
}

// WithClock sets the source of server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type entry struct {
	collection string
	id         string
	data       map[string]interface{}
	version    docstore.Version
}

// Store ...
type Store struct {
	writeMu sync.Mutex

	mu       sync.Mutex
	docs     map[string]*entry
	version  docstore.Version
	watchers map[*watch]struct{}

	guard Guard
	now   func() time.Time

	queries int64
	counts  int64
}

// New creates new instance of Store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:     make(map[string]*entry),
		watchers: make(map[*watch]struct{}),
		now:      time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// QueryCount returns how many one-shot queries were issued.
func (s *Store) QueryCount() int64 {
	return atomic.LoadInt64(&s.queries)
}

// CountCount returns how many aggregate counts were issued.
func (s *Store) CountCount() int64 {
	return atomic.LoadInt64(&s.counts)
}

// Version returns the latest committed version.
func (s *Store) Version() docstore.Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

// Ping ...
func (s *Store) Ping(_ context.Context) (interface{}, error) {
	return map[string]interface{}{"version": s.Version()}, nil
}

// Name ...
func (s *Store) Name() string {
	return "memory"
}

// Get ...
func (s *Store) Get(ctx context.Context, path string) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot(path), nil
}

// Query ...
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}

	atomic.AddInt64(&s.queries, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(q), nil
}

// Count ...
func (s *Store) Count(ctx context.Context, q docstore.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := q.Validate(); err != nil {
		return 0, err
	}

	atomic.AddInt64(&s.counts, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.run(q))), nil
}

// RunTransaction runs f serialized with all other writes.
func (s *Store) RunTransaction(ctx context.Context, f func(ctx context.Context, tx docstore.Tx) error) (docstore.Version, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t := &tx{s: s}
	if err := f(ctx, t); err != nil {
		return 0, err
	}

	if t.err != nil {
		return 0, t.err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return s.commit(t.writes)
}

// ApplyBatch commits writes atomically.
func (s *Store) ApplyBatch(ctx context.Context, writes []docstore.Write) (docstore.Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.commit(writes)
}

// WatchDocument ...
func (s *Store) WatchDocument(ctx context.Context, path string) docstore.DocumentIterator {
	w := s.newWatch(ctx)
	w.path = path

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := docstore.Split(path); err != nil {
		w.push(update{err: err})
		return documentIterator{w}
	}

	s.watchers[w] = struct{}{}
	w.push(update{doc: s.snapshot(path)})

	return documentIterator{w}
}

// WatchQuery ...
func (s *Store) WatchQuery(ctx context.Context, q docstore.Query) docstore.QueryIterator {
	w := s.newWatch(ctx)
	w.query = &q

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := q.Validate(); err != nil {
		w.push(update{err: err})
		return queryIterator{w}
	}

	s.watchers[w] = struct{}{}
	w.push(update{snap: &docstore.QuerySnapshot{Docs: s.run(q), Version: s.version}})

	return queryIterator{w}
}

// BreakWatches fails every active watch with err.
func (s *Store) BreakWatches(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for w := range s.watchers {
		w.push(update{err: err})
		delete(s.watchers, w)
	}
}

// snapshot should be called under lock.
func (s *Store) snapshot(path string) *docstore.Document {
	_, id, _ := docstore.Split(path)

	e, ok := s.docs[path]
	if !ok {
		return &docstore.Document{
			Path:    path,
			ID:      id,
			Version: s.version,
		}
	}

	return &docstore.Document{
		Path:    path,
		ID:      e.id,
		Data:    docstore.Clone(e.data),
		Exists:  true,
		Version: s.version,
	}
}

// run should be called under lock.
func (s *Store) run(q docstore.Query) []*docstore.Document {
	docs := make([]*docstore.Document, 0)
	for path, e := range s.docs {
		if e.collection != q.Collection {
			continue
		}

		docs = append(docs, &docstore.Document{
			Path:    path,
			ID:      e.id,
			Data:    docstore.Clone(e.data),
			Exists:  true,
			Version: e.version,
		})
	}

	return run(docs, q)
}

func (s *Store) lookup(path string) (map[string]interface{}, bool) {
	e, ok := s.docs[path]
	if !ok {
		return nil, false
	}

	return docstore.Clone(e.data), true
}

type staged struct {
	collection string
	id         string
	data       map[string]interface{}
	exists     bool
}

func (s *Store) commit(writes []docstore.Write) (docstore.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(writes) == 0 {
		return s.version, nil
	}

	if s.guard != nil {
		if err := s.guard(writes, s.lookup); err != nil {
			return 0, fmt.Errorf("failed to commit: %w", err)
		}
	}

	now := s.now()
	changes := make(map[string]*staged, len(writes))

	for _, w := range writes {
		collection, id, err := docstore.Split(w.Path)
		if err != nil {
			return 0, err
		}

		var (
			current map[string]interface{}
			exists  bool
		)

		if c, ok := changes[w.Path]; ok {
			current, exists = c.data, c.exists
		} else if e, ok := s.docs[w.Path]; ok {
			current, exists = e.data, true
		}

		data, exists, err := docstore.Apply(current, exists, w, now)
		if err != nil {
			return 0, fmt.Errorf("failed to apply write: %w", err)
		}

		changes[w.Path] = &staged{collection: collection, id: id, data: data, exists: exists}
	}

	s.version++

	for path, c := range changes {
		if !c.exists {
			delete(s.docs, path)
			continue
		}

		s.docs[path] = &entry{
			collection: c.collection,
			id:         c.id,
			data:       c.data,
			version:    s.version,
		}
	}

	s.notify(changes)

	log.WithField("version", s.version).Debugf("committed %d writes", len(writes))

	return s.version, nil
}

// notify should be called under lock.
func (s *Store) notify(changes map[string]*staged) {
	for w := range s.watchers {
		if w.query == nil {
			if _, ok := changes[w.path]; ok {
				w.push(update{doc: s.snapshot(w.path)})
			}
			continue
		}

		for _, c := range changes {
			if c.collection == w.query.Collection {
				w.push(update{snap: &docstore.QuerySnapshot{Docs: s.run(*w.query), Version: s.version}})
				break
			}
		}
	}
}

func (s *Store) remove(w *watch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watchers, w)
}

type tx struct {
	s      *Store
	writes []docstore.Write
	err    error
}

func (t *tx) Get(path string) (*docstore.Document, error) {
	if len(t.writes) > 0 {
		t.err = errReadAfterWrite
		return nil, t.err
	}

	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	return t.s.snapshot(path), nil
}

func (t *tx) Apply(writes ...docstore.Write) {
	t.writes = append(t.writes, writes...)
}
