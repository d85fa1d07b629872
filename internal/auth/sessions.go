package auth

import (
	"context"
	"sync"

	"github.com/ting-rn/ting-sync/internal/entities"
)

// EventKind ...
type EventKind int

const (
	// SignedIn ...
	SignedIn EventKind = iota + 1
	// SignedOut ...
	SignedOut
)

// Event is a session change of one user.
type Event struct {
	Kind     EventKind
	Identity entities.Identity
}

// Sessions verifies tokens and notifies subscribers about sign-in and sign-out of a user.
type Sessions struct {
	verifier Verifier

	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]func(Event)
}

// NewSessions ...
func NewSessions(v Verifier) *Sessions {
	return &Sessions{
		verifier: v,
		subs:     make(map[string]map[uint64]func(Event)),
	}
}

// Verifier returns underlying verifier.
func (s *Sessions) Verifier() Verifier {
	return s.verifier
}

// SignIn verifies token and publishes SignedIn.
func (s *Sessions) SignIn(ctx context.Context, token string) (entities.Identity, error) {
	id, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return entities.Identity{}, err
	}

	s.publish(Event{Kind: SignedIn, Identity: id})

	return id, nil
}

// SignOut publishes SignedOut. Subscribers bound to the user are expected to tear down.
func (s *Sessions) SignOut(id entities.Identity) {
	if id.IsZero() {
		return
	}

	s.publish(Event{Kind: SignedOut, Identity: id})
}

// Subscribe registers f for events of user uid. The returned func unsubscribes.
func (s *Sessions) Subscribe(uid string, f func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	key := s.next

	if s.subs[uid] == nil {
		s.subs[uid] = make(map[uint64]func(Event))
	}
	s.subs[uid][key] = f

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.subs[uid], key)
		if len(s.subs[uid]) == 0 {
			delete(s.subs, uid)
		}
	}
}

func (s *Sessions) publish(e Event) {
	s.mu.Lock()
	fs := make([]func(Event), 0, len(s.subs[e.Identity.ID]))
	for _, f := range s.subs[e.Identity.ID] {
		fs = append(fs, f)
	}
	s.mu.Unlock()

	log.WithField("user", e.Identity.ID).WithField("kind", e.Kind).Debug("session event")

	for _, f := range fs {
		f(e)
	}
}
