package subscription

import (
	"context"
	"sync"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

// CollectionState ...
type CollectionState[T any] struct {
	Data    []T
	Loading bool
	Version docstore.Version
}

// Collection is a live subscription to a query.
type Collection[T any] struct {
	store     docstore.Store
	transform func(*docstore.Document) T
	onChange  func(CollectionState[T])

	b binding

	mu    sync.RWMutex
	state CollectionState[T]
}

// NewCollection creates an unbound query subscription. onChange may be nil and must not call Bind.
func NewCollection[T any](ctx context.Context, store docstore.Store, transform func(*docstore.Document) T, onChange func(CollectionState[T])) *Collection[T] {
	return &Collection[T]{
		store:     store,
		transform: transform,
		onChange:  onChange,
		b:         binding{ctx: ctx},
		state:     CollectionState[T]{Data: []T{}},
	}
}

// Bind subscribes to q. Nil q disables the subscription.
// Queries with equal keys are the same handle.
func (c *Collection[T]) Bind(q *docstore.Query) {
	var key string
	if q != nil {
		key = q.Key()
	}

	gen, ctx, ok := c.b.rebind(key, q != nil)
	if !ok {
		return
	}

	if ctx == nil {
		c.set(gen, CollectionState[T]{Data: []T{}})
		return
	}

	c.set(gen, CollectionState[T]{Data: []T{}, Loading: true})

	it := c.store.WatchQuery(ctx, *q)

	go func() {
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if !stopped(ctx, err) {
					log.WithError(err).WithField("query", key).Warn("query watch failed")
					c.set(gen, CollectionState[T]{Data: []T{}})
				}
				return
			}

			data := make([]T, len(snap.Docs))
			for i, doc := range snap.Docs {
				data[i] = c.transform(doc)
			}

			c.set(gen, CollectionState[T]{Data: data, Version: snap.Version})
		}
	}()
}

// State returns the latest state.
func (c *Collection[T]) State() CollectionState[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// Close tears the subscription down. Further binds are ignored.
func (c *Collection[T]) Close() {
	c.b.close()
}

func (c *Collection[T]) set(gen uint64, s CollectionState[T]) {
	c.b.emit(gen, func() {
		c.mu.Lock()
		c.state = s
		c.mu.Unlock()

		if c.onChange != nil {
			c.onChange(s)
		}
	})
}
