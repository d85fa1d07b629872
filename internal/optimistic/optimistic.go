// Package optimistic contains a boolean toggle which shows the requested state before the remote
// mutation is confirmed and rolls it back when the mutation fails.
package optimistic

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

var log = logrus.WithField("layer", "optimistic").WithField("package", "optimistic")

// ErrInFlight is returned when a toggle is requested while the previous mutation is pending.
var ErrInFlight = errors.New("mutation is in flight")

// DefaultSettleTimeout clears the override when the subscription does not catch up with the mutation.
const DefaultSettleTimeout = 5 * time.Second

// Phase ...
type Phase int

const (
	// Idle means displayed value tracks the server value.
	Idle Phase = iota
	// Toggling means a mutation is pending.
	Toggling
	// Settling means the mutation succeeded and the subscription has not delivered it yet.
	Settling
	// RollingBack means the mutation failed.
	RollingBack
)

// String ...
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Toggling:
		return "toggling"
	case Settling:
		return "settling"
	case RollingBack:
		return "rolling_back"
	default:
		return "unknown"
	}
}

// Mutation moves remote state away from prior and returns the version of the commit.
type Mutation func(ctx context.Context, prior bool) (docstore.Version, error)

// State ...
type State struct {
	Value bool
	Phase Phase
}

// Option ...
type Option func(t *Toggle)

// WithPrecondition sets a check which runs before every toggle. Its error is returned as is.
func WithPrecondition(f func() error) Option {
	return func(t *Toggle) {
		t.precondition = f
	}
}

// WithSettleTimeout ...
func WithSettleTimeout(d time.Duration) Option {
	return func(t *Toggle) {
		if d > 0 {
			t.settle = d
		}
	}
}

// WithOnChange sets a callback which receives every displayed state.
func WithOnChange(f func(State)) Option {
	return func(t *Toggle) {
		t.onChange = f
	}
}

// Toggle is an optimistic boolean backed by a remote record.
type Toggle struct {
	mutate       Mutation
	precondition func() error
	settle       time.Duration
	onChange     func(State)

	emitMu sync.Mutex

	mu            sync.Mutex
	server        bool
	serverVersion docstore.Version
	override      *bool
	phase         Phase
	pending       docstore.Version
	seq           uint64
	timer         *time.Timer
}

// New creates new instance of Toggle.
func New(mutate Mutation, opts ...Option) *Toggle {
	t := &Toggle{
		mutate: mutate,
		settle: DefaultSettleTimeout,
	}

	for _, o := range opts {
		o(t)
	}

	return t
}

// Observe feeds the server confirmed value delivered by a subscription at version v.
func (t *Toggle) Observe(value bool, v docstore.Version) {
	t.mu.Lock()
	t.server = value
	if v > t.serverVersion {
		t.serverVersion = v
	}
	if t.phase == Settling && t.serverVersion >= t.pending {
		t.reset()
	}
	t.mu.Unlock()

	t.notify()
}

// State returns displayed value and phase.
func (t *Toggle) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state()
}

// Toggle flips the displayed value and issues the mutation.
// It returns ErrInFlight while the previous mutation is pending and the precondition error if it fails.
// In both cases no mutation is issued and the displayed value does not change.
func (t *Toggle) Toggle(ctx context.Context) error {
	t.mu.Lock()

	if t.phase == Toggling {
		t.mu.Unlock()
		return ErrInFlight
	}

	if t.precondition != nil {
		if err := t.precondition(); err != nil {
			t.mu.Unlock()
			return err
		}
	}

	t.stopTimer()

	prior := t.override
	displayed := t.displayed()
	flipped := !displayed

	t.override = &flipped
	t.phase = Toggling
	t.seq++
	seq := t.seq

	t.mu.Unlock()
	t.notify()

	v, err := t.mutate(ctx, displayed)

	t.mu.Lock()

	if err != nil {
		log.WithError(err).Debug("mutation failed, rolling back")

		t.override = prior
		t.phase = RollingBack
		t.mu.Unlock()
		t.notify()

		t.mu.Lock()
		if t.seq == seq && t.phase == RollingBack {
			t.phase = Idle
		}
		t.mu.Unlock()
		t.notify()

		return err
	}

	t.pending = v
	if t.serverVersion >= v {
		t.reset()
	} else {
		t.phase = Settling
		t.timer = time.AfterFunc(t.settle, func() {
			t.mu.Lock()
			if t.seq == seq && t.phase == Settling {
				log.WithField("version", v).Debug("settle timeout")
				t.reset()
			}
			t.mu.Unlock()
			t.notify()
		})
	}

	t.mu.Unlock()
	t.notify()

	return nil
}

// displayed should be called under lock.
func (t *Toggle) displayed() bool {
	if t.override != nil {
		return *t.override
	}
	return t.server
}

// state should be called under lock.
func (t *Toggle) state() State {
	return State{Value: t.displayed(), Phase: t.phase}
}

// reset should be called under lock.
func (t *Toggle) reset() {
	t.stopTimer()
	t.override = nil
	t.phase = Idle
}

// stopTimer should be called under lock.
func (t *Toggle) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *Toggle) notify() {
	if t.onChange == nil {
		return
	}

	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.onChange(t.State())
}
