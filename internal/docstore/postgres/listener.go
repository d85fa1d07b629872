package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

// Channel is the notification channel documents trigger publishes changed collections to.
const Channel = "documents"

const listenerPingInterval = 90 * time.Second

// Listener is the part of pq.Listener the store uses.
type Listener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// NewListener returns pq.Listener connected to dsn.
func NewListener(dsn string) *pq.Listener {
	return pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.WithError(err).WithField("event", ev).Warn("listener event")
		}
	})
}

type loader func(ctx context.Context) (interface{}, string, error)

type hub struct {
	l Listener

	mu      sync.Mutex
	watches map[*watch]struct{}
}

func newHub(l Listener) *hub {
	return &hub{
		l:       l,
		watches: make(map[*watch]struct{}),
	}
}

func (h *hub) run(ctx context.Context) error {
	if h.l == nil {
		<-ctx.Done()
		return nil
	}

	if err := h.l.Listen(Channel); err != nil {
		return fmt.Errorf("failed to listen %s: %w", Channel, err)
	}
	defer h.l.Close()

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-h.l.NotificationChannel():
			if n == nil {
				// connection was re-established, notifications might have been lost
				log.Info("listener reconnected")
				h.broadcast("")
				continue
			}
			h.broadcast(n.Extra)
		case <-ticker.C:
			go func() {
				if err := h.l.Ping(); err != nil {
					log.WithError(err).Warn("failed to ping listener")
				}
			}()
		}
	}
}

// broadcast signals watches over collection, or every watch when collection is empty.
func (h *hub) broadcast(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for w := range h.watches {
		if collection == "" || w.collection == collection {
			w.signal()
		}
	}
}

func (h *hub) watch(ctx context.Context, collection string, load loader, err error) *watch {
	ctx, cancel := context.WithCancel(ctx)

	w := &watch{
		ctx:        ctx,
		cancel:     cancel,
		h:          h,
		collection: collection,
		load:       load,
		err:        err,
		changed:    make(chan struct{}, 1),
	}

	if err == nil {
		h.mu.Lock()
		h.watches[w] = struct{}{}
		h.mu.Unlock()
	}

	return w
}

func (h *hub) remove(w *watch) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.watches, w)
}

// watch reloads its target on every signal and delivers it when it differs from the last delivered one.
type watch struct {
	ctx        context.Context
	cancel     context.CancelFunc
	h          *hub
	collection string
	load       loader
	err        error
	changed    chan struct{}

	mu      sync.Mutex
	started bool
	last    string
	once    sync.Once
}

func (w *watch) signal() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}

func (w *watch) next() (interface{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		err := w.err
		w.err = docstore.ErrIteratorDone
		w.stop()
		return nil, err
	}

	for {
		if w.started {
			select {
			case <-w.ctx.Done():
				return nil, w.done()
			case <-w.changed:
			}
		}

		if err := w.ctx.Err(); err != nil {
			return nil, w.done()
		}

		v, fp, err := w.load(w.ctx)
		if err != nil {
			if w.ctx.Err() != nil {
				return nil, w.done()
			}
			w.err = docstore.ErrIteratorDone
			w.stop()
			return nil, err
		}

		if w.started && fp == w.last {
			continue
		}

		w.started, w.last = true, fp

		return v, nil
	}
}

// done returns the error Next reports after the watch was stopped.
func (w *watch) done() error {
	w.stop()
	return docstore.ErrIteratorDone
}

func (w *watch) stop() {
	w.once.Do(func() {
		w.cancel()
		w.h.remove(w)
	})
}

type documentIterator struct {
	w *watch
}

func (it documentIterator) Next() (*docstore.Document, error) {
	v, err := it.w.next()
	if err != nil {
		return nil, err
	}
	return v.(*docstore.Document), nil
}

func (it documentIterator) Stop() {
	it.w.stop()
}

type queryIterator struct {
	w *watch
}

func (it queryIterator) Next() (*docstore.QuerySnapshot, error) {
	v, err := it.w.next()
	if err != nil {
		return nil, err
	}
	return v.(*docstore.QuerySnapshot), nil
}

func (it queryIterator) Stop() {
	it.w.stop()
}

// fingerprint identifies the content of docs regardless of the snapshot version.
func fingerprint(docs []*docstore.Document) string {
	var b strings.Builder

	for _, d := range docs {
		b.WriteString(d.ID)
		if !d.Exists {
			b.WriteString("!\n")
			continue
		}

		// map keys are marshaled sorted
		raw, _ := encode(d.Data)
		b.Write(raw)
		b.WriteByte('\n')
	}

	return b.String()
}
