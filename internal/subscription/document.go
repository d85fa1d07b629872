package subscription

import (
	"context"
	"sync"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

// DocumentState ...
type DocumentState[T any] struct {
	// Data is nil while loading and when the document does not exist.
	Data    *T
	Exists  bool
	Loading bool
	Version docstore.Version
}

// Document is a live subscription to one document.
type Document[T any] struct {
	store     docstore.Store
	transform func(*docstore.Document) T
	onChange  func(DocumentState[T])

	b binding

	mu    sync.RWMutex
	state DocumentState[T]
}

// NewDocument creates an unbound document subscription. onChange may be nil and must not call Bind.
func NewDocument[T any](ctx context.Context, store docstore.Store, transform func(*docstore.Document) T, onChange func(DocumentState[T])) *Document[T] {
	return &Document[T]{
		store:     store,
		transform: transform,
		onChange:  onChange,
		b:         binding{ctx: ctx},
	}
}

// Bind subscribes to the document at path. Empty path disables the subscription.
func (d *Document[T]) Bind(path string) {
	gen, ctx, ok := d.b.rebind(path, path != "")
	if !ok {
		return
	}

	if ctx == nil {
		d.set(gen, DocumentState[T]{})
		return
	}

	d.set(gen, DocumentState[T]{Loading: true})

	it := d.store.WatchDocument(ctx, path)

	go func() {
		defer it.Stop()

		for {
			doc, err := it.Next()
			if err != nil {
				if !stopped(ctx, err) {
					log.WithError(err).WithField("path", path).Warn("document watch failed")
					d.set(gen, DocumentState[T]{})
				}
				return
			}

			s := DocumentState[T]{Exists: doc.Exists, Version: doc.Version}
			if doc.Exists {
				v := d.transform(doc)
				s.Data = &v
			}

			d.set(gen, s)
		}
	}()
}

// State returns the latest state.
func (d *Document[T]) State() DocumentState[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.state
}

// Close tears the subscription down. Further binds are ignored.
func (d *Document[T]) Close() {
	d.b.close()
}

func (d *Document[T]) set(gen uint64, s DocumentState[T]) {
	d.b.emit(gen, func() {
		d.mu.Lock()
		d.state = s
		d.mu.Unlock()

		if d.onChange != nil {
			d.onChange(s)
		}
	})
}
