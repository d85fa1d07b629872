// Package subscription turns live document and query handles into view states.
//
// A subscription is bound to a handle. Binding an empty handle yields an empty terminal state.
// Binding another handle tears the previous watch down and starts over from loading.
// A push error yields the empty terminal state and is not retried, the owner rebinds to refresh.
package subscription

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

var log = logrus.WithField("layer", "subscription").WithField("package", "subscription")

// binding serializes state changes of one subscription and drops those of torn down watches.
type binding struct {
	ctx context.Context

	mu     sync.Mutex
	emitMu sync.Mutex
	key    string
	bound  bool
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

// rebind tears the current watch down. It reports false when key is already bound.
func (b *binding) rebind(key string, bound bool) (uint64, context.Context, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, nil, false
	}

	if b.gen > 0 && b.bound == bound && b.key == key {
		return 0, nil, false
	}

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	b.gen++
	b.key, b.bound = key, bound

	if !bound {
		return b.gen, nil, true
	}

	ctx, cancel := context.WithCancel(b.ctx)
	b.cancel = cancel

	return b.gen, ctx, true
}

// current reports whether gen is still the bound watch.
func (b *binding) current(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return !b.closed && b.gen == gen
}

func (b *binding) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.closed = true
}

// emit runs f if gen is current. Emissions never interleave.
func (b *binding) emit(gen uint64, f func()) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	if b.current(gen) {
		f()
	}
}

func stopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, docstore.ErrIteratorDone)
}
