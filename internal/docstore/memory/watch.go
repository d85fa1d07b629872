package memory

import (
	"context"
	"sync"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

type update struct {
	doc  *docstore.Document
	snap *docstore.QuerySnapshot
	err  error
}

// watch keeps only the latest undelivered update, so a slow reader skips superseded states
// but never sees them out of order.
type watch struct {
	ctx     context.Context
	s       *Store
	path    string
	query   *docstore.Query
	updates chan update
	done    chan struct{}
	once    sync.Once
}

func (s *Store) newWatch(ctx context.Context) *watch {
	w := &watch{
		ctx:     ctx,
		s:       s,
		updates: make(chan update, 1),
		done:    make(chan struct{}),
	}

	go func() {
		select {
		case <-ctx.Done():
			w.stop()
		case <-w.done:
		}
	}()

	return w
}

// push should be called under store lock.
func (w *watch) push(u update) {
	select {
	case <-w.updates:
	default:
	}

	select {
	case w.updates <- u:
	default:
	}
}

// next returns ErrIteratorDone once the watch is stopped or its context is done.
func (w *watch) next() (update, error) {
	select {
	case <-w.done:
		return update{}, docstore.ErrIteratorDone
	default:
	}

	select {
	case u := <-w.updates:
		return u, nil
	case <-w.done:
		return update{}, docstore.ErrIteratorDone
	}
}

func (w *watch) stop() {
	w.once.Do(func() {
		close(w.done)
		w.s.remove(w)
	})
}

type documentIterator struct {
	w *watch
}

func (it documentIterator) Next() (*docstore.Document, error) {
	u, err := it.w.next()
	if err != nil {
		return nil, err
	}

	if u.err != nil {
		it.w.stop()
		return nil, u.err
	}

	return u.doc, nil
}

func (it documentIterator) Stop() {
	it.w.stop()
}

type queryIterator struct {
	w *watch
}

func (it queryIterator) Next() (*docstore.QuerySnapshot, error) {
	u, err := it.w.next()
	if err != nil {
		return nil, err
	}

	if u.err != nil {
		it.w.stop()
		return nil, u.err
	}

	return u.snap, nil
}

func (it queryIterator) Stop() {
	it.w.stop()
}
