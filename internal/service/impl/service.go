// Package impl is implementation of service interface.
package impl

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/blob"
	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/service"
)

var log = logrus.WithField("layer", "service").WithField("package", "impl")

var errNoBlobStorage = errors.New("blob storage is not configured")

// service ...
type srv struct {
	store  docstore.Store
	blob   blob.Storage
	policy *bluemonday.Policy
	now    func() time.Time
}

// Option ...
type Option func(s *srv)

// WithClock sets the clock used for object names.
func WithClock(now func() time.Time) Option {
	return func(s *srv) {
		s.now = now
	}
}

// New creates new instance of service. b may be nil when uploads are not needed.
func New(store docstore.Store, b blob.Storage, opts ...Option) service.Service {
	s := &srv{
		store:  store,
		blob:   b,
		policy: bluemonday.StrictPolicy(),
		now:    time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// clean strips markup from user generated text.
func (s *srv) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

func requireActor(actor entities.Identity) error {
	if actor.IsZero() {
		return service.ErrUnauthenticated
	}
	return nil
}

// checkPeer validates a relation between actor and target.
func checkPeer(actor entities.Identity, target string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	if target == "" {
		return fmt.Errorf("%w: empty target", service.ErrInvalidArgument)
	}

	if target == actor.ID {
		return service.ErrSelfAction
	}

	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", docstore.ErrNotFound, kind, id)
}
