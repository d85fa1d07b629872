// Package firestore is implementation of docstore over Google Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

var log = logrus.WithField("layer", "docstore").WithField("package", "firestore")

const countAlias = "all"

// Store ...
type Store struct {
	c   *firestore.Client
	now func() time.Time
}

// New creates new instance of Store.
func New(c *firestore.Client) *Store {
	return &Store{c: c, now: time.Now}
}

// NewFromApp creates store over the firestore of the firebase app.
func NewFromApp(ctx context.Context, app *firebase.App) (*Store, error) {
	c, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return New(c), nil
}

// Close ...
func (s *Store) Close() error {
	return s.c.Close()
}

// Name ...
func (s *Store) Name() string {
	return "firestore"
}

// Ping reads a missing document.
func (s *Store) Ping(ctx context.Context) (interface{}, error) {
	d, err := s.Get(ctx, "health/ping")
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{"read_time": time.Unix(0, int64(d.Version)).UTC()}, nil
}

// Get ...
func (s *Store) Get(ctx context.Context, path string) (*docstore.Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}

	snap, err := ref.Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return nil, fmt.Errorf("failed to get document: %w", translate(err))
	}

	return toDocument(path, ref.ID, snap), nil
}

// Query ...
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	fq, err := s.query(q)
	if err != nil {
		return nil, err
	}

	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", translate(err))
	}

	return toDocuments(q.Collection, snaps), nil
}

// Count uses count aggregation, so documents are not transferred.
func (s *Store) Count(ctx context.Context, q docstore.Query) (int64, error) {
	fq, err := s.query(q)
	if err != nil {
		return 0, err
	}

	res, err := fq.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", translate(err))
	}

	v, ok := res[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result %T", res[countAlias])
	}

	return v.GetIntegerValue(), nil
}

// RunTransaction ...
// Firestore does not report commit time of a transaction, its version is read back from the written documents.
func (s *Store) RunTransaction(ctx context.Context, f func(ctx context.Context, tx docstore.Tx) error) (docstore.Version, error) {
	var committed []docstore.Write

	err := s.c.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		t := &tx{s: s, tx: ftx}
		committed = nil

		if err := f(ctx, t); err != nil {
			return err
		}
		if t.err != nil {
			return t.err
		}

		for _, w := range t.writes {
			if err := t.apply(w); err != nil {
				return err
			}
		}

		committed = t.writes
		return nil
	})
	if err != nil {
		return 0, translate(err)
	}

	return s.commitVersion(ctx, committed)
}

// commitVersion reads written documents back, so the version comes from the server clock
// the same way snapshot versions do.
func (s *Store) commitVersion(ctx context.Context, writes []docstore.Write) (docstore.Version, error) {
	if len(writes) == 0 {
		return version(s.now()), nil
	}

	seen := make(map[string]struct{}, len(writes))
	refs := make([]*firestore.DocumentRef, 0, len(writes))
	for _, w := range writes {
		if _, ok := seen[w.Path]; ok {
			continue
		}
		seen[w.Path] = struct{}{}

		ref, err := s.doc(w.Path)
		if err != nil {
			return 0, err
		}
		refs = append(refs, ref)
	}

	snaps, err := s.c.GetAll(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("failed to read committed documents: %w", translate(err))
	}

	return latest(snaps), nil
}

// ApplyBatch ...
func (s *Store) ApplyBatch(ctx context.Context, writes []docstore.Write) (docstore.Version, error) {
	if len(writes) == 0 {
		return version(s.now()), nil
	}

	b := s.c.Batch()
	for _, w := range writes {
		ref, err := s.doc(w.Path)
		if err != nil {
			return 0, err
		}

		switch w.Kind {
		case docstore.SetWrite:
			b.Set(ref, fields(w.Data))
		case docstore.MergeWrite:
			b.Set(ref, fields(w.Data), firestore.MergeAll)
		case docstore.UpdateWrite:
			b.Update(ref, updates(w.Data))
		case docstore.DeleteWrite:
			b.Delete(ref)
		default:
			return 0, fmt.Errorf("unknown write kind %d", w.Kind)
		}
	}

	res, err := b.Commit(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", translate(err))
	}

	var v docstore.Version
	for _, r := range res {
		if rv := version(r.UpdateTime); rv > v {
			v = rv
		}
	}

	return v, nil
}

// WatchDocument ...
func (s *Store) WatchDocument(ctx context.Context, path string) docstore.DocumentIterator {
	ref, err := s.doc(path)
	if err != nil {
		return &documentIterator{err: err}
	}

	return &documentIterator{ctx: ctx, path: path, id: ref.ID, it: ref.Snapshots(ctx)}
}

// WatchQuery ...
func (s *Store) WatchQuery(ctx context.Context, q docstore.Query) docstore.QueryIterator {
	fq, err := s.query(q)
	if err != nil {
		return &queryIterator{err: err}
	}

	return &queryIterator{ctx: ctx, collection: q.Collection, it: fq.Snapshots(ctx)}
}

func (s *Store) doc(path string) (*firestore.DocumentRef, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}

	ref := s.c.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrInvalidPath, path)
	}

	return ref, nil
}

func (s *Store) query(q docstore.Query) (firestore.Query, error) {
	if err := q.Validate(); err != nil {
		return firestore.Query{}, err
	}

	coll := s.c.Collection(q.Collection)
	if coll == nil {
		return firestore.Query{}, fmt.Errorf("%w: %s", docstore.ErrInvalidQuery, q.Collection)
	}

	fq := coll.Query
	for _, f := range q.Filters {
		v := f.Value
		if f.Field == docstore.DocumentID {
			v = refs(coll, f.Value)
		}
		fq = fq.Where(f.Field, string(f.Op), v)
	}

	for _, o := range q.Orders {
		d := firestore.Asc
		if o.Direction == docstore.Desc {
			d = firestore.Desc
		}
		fq = fq.OrderBy(o.Field, d)
	}

	if q.Size > 0 {
		fq = fq.Limit(q.Size)
	}

	return fq, nil
}

// refs converts document ids to references, firestore compares __name__ against references.
func refs(coll *firestore.CollectionRef, v interface{}) interface{} {
	if id, ok := v.(string); ok {
		return coll.Doc(id)
	}

	values, ok := docstore.Values(v)
	if !ok {
		return v
	}

	out := make([]*firestore.DocumentRef, 0, len(values))
	for _, e := range values {
		if id, ok := e.(string); ok {
			out = append(out, coll.Doc(id))
		}
	}

	return out
}

type tx struct {
	s      *Store
	tx     *firestore.Transaction
	writes []docstore.Write
	err    error
}

func (t *tx) Get(path string) (*docstore.Document, error) {
	if len(t.writes) > 0 {
		t.err = errors.New("transaction reads must happen before writes")
		return nil, t.err
	}

	ref, err := t.s.doc(path)
	if err != nil {
		return nil, err
	}

	snap, err := t.tx.Get(ref)
	if err != nil && status.Code(err) != codes.NotFound {
		return nil, fmt.Errorf("failed to get document: %w", translate(err))
	}

	return toDocument(path, ref.ID, snap), nil
}

func (t *tx) Apply(writes ...docstore.Write) {
	t.writes = append(t.writes, writes...)
}

func (t *tx) apply(w docstore.Write) error {
	ref, err := t.s.doc(w.Path)
	if err != nil {
		return err
	}

	switch w.Kind {
	case docstore.SetWrite:
		return t.tx.Set(ref, fields(w.Data))
	case docstore.MergeWrite:
		return t.tx.Set(ref, fields(w.Data), firestore.MergeAll)
	case docstore.UpdateWrite:
		return t.tx.Update(ref, updates(w.Data))
	case docstore.DeleteWrite:
		return t.tx.Delete(ref)
	default:
		return fmt.Errorf("unknown write kind %d", w.Kind)
	}
}

type documentIterator struct {
	ctx  context.Context
	path string
	id   string
	it   *firestore.DocumentSnapshotIterator
	err  error
}

func (i *documentIterator) Next() (*docstore.Document, error) {
	if i.err != nil {
		err := i.err
		i.err = docstore.ErrIteratorDone
		return nil, err
	}

	snap, err := i.it.Next()
	if err != nil {
		return nil, i.fail(err)
	}

	return toDocument(i.path, i.id, snap), nil
}

func (i *documentIterator) fail(err error) error {
	if errors.Is(err, iterator.Done) || i.ctx.Err() != nil {
		return docstore.ErrIteratorDone
	}

	log.WithError(err).WithField("path", i.path).Debug("document watch failed")

	return translate(err)
}

func (i *documentIterator) Stop() {
	if i.it != nil {
		i.it.Stop()
	}
}

type queryIterator struct {
	ctx        context.Context
	collection string
	it         *firestore.QuerySnapshotIterator
	err        error
}

func (i *queryIterator) Next() (*docstore.QuerySnapshot, error) {
	if i.err != nil {
		err := i.err
		i.err = docstore.ErrIteratorDone
		return nil, err
	}

	qs, err := i.it.Next()
	if err != nil {
		return nil, i.fail(err)
	}

	snaps, err := qs.Documents.GetAll()
	if err != nil {
		return nil, i.fail(err)
	}

	return &docstore.QuerySnapshot{
		Docs:    toDocuments(i.collection, snaps),
		Version: version(qs.ReadTime),
	}, nil
}

func (i *queryIterator) fail(err error) error {
	if errors.Is(err, iterator.Done) || i.ctx.Err() != nil {
		return docstore.ErrIteratorDone
	}

	log.WithError(err).WithField("collection", i.collection).Debug("query watch failed")

	return translate(err)
}

func (i *queryIterator) Stop() {
	if i.it != nil {
		i.it.Stop()
	}
}
