// Package live contains per-connection view models which combine live subscriptions
// with optimistic toggles.
package live

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/optimistic"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
	"github.com/ting-rn/ting-sync/internal/subscription"
)

var log = logrus.WithField("layer", "live").WithField("package", "live")

// View is a live view model. Its lifetime is bound to the consumer.
type View interface {
	// Toggle flips the view's boolean. Views without one return ErrNotToggleable.
	Toggle(ctx context.Context) error
	Close()
}

// Config ...
type Config struct {
	Store   docstore.Store
	Service service.Service
	// SettleTimeout is passed to optimistic toggles.
	SettleTimeout time.Duration
}

// Factory creates views bound to one store and service.
type Factory struct {
	cfg Config
}

// NewFactory ...
func NewFactory(cfg Config) *Factory {
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = optimistic.DefaultSettleTimeout
	}

	return &Factory{cfg: cfg}
}

func exists(d *docstore.Document) bool {
	return d.Exists
}

// emitter serializes callbacks of a view composed of several sources.
type emitter[S any] struct {
	mu       sync.Mutex
	onChange func(S)
}

func (e *emitter[S]) emit(build func() S) {
	if e.onChange == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.onChange(build())
}

// LikeState ...
type LikeState struct {
	Liked   bool
	Count   int64
	Phase   optimistic.Phase
	Loading bool
}

// LikeView shows whether viewer likes the post and the post's like counter.
type LikeView struct {
	viewer  entities.Identity
	post    *subscription.Document[entities.Post]
	like    *subscription.Document[bool]
	toggle  *optimistic.Toggle
	history likeHistory
	e       emitter[LikeState]
}

// Like creates a like view. Anonymous viewers see the counter only.
func (f *Factory) Like(ctx context.Context, viewer entities.Identity, postID string, onChange func(LikeState)) *LikeView {
	v := &LikeView{viewer: viewer, e: emitter[LikeState]{onChange: onChange}}

	v.toggle = optimistic.New(
		func(ctx context.Context, prior bool) (docstore.Version, error) {
			ver, err := f.cfg.Service.SetLike(ctx, viewer, postID, prior)
			if err == nil {
				v.history.commit(ver, !prior)
			}
			return ver, err
		},
		optimistic.WithPrecondition(v.precondition),
		optimistic.WithSettleTimeout(f.cfg.SettleTimeout),
		optimistic.WithOnChange(func(optimistic.State) { v.e.emit(v.State) }),
	)

	v.post = subscription.NewDocument(ctx, f.cfg.Store, func(d *docstore.Document) entities.Post {
		return *schema.PostFromDoc(d)
	}, func(subscription.DocumentState[entities.Post]) {
		v.e.emit(v.State)
	})

	v.like = subscription.NewDocument(ctx, f.cfg.Store, exists, func(s subscription.DocumentState[bool]) {
		if !s.Loading {
			v.history.observe(s.Version, s.Exists)
			v.toggle.Observe(s.Exists, s.Version)
		}
		v.e.emit(v.State)
	})

	v.post.Bind(schema.PostPath(postID))
	if !viewer.IsZero() {
		v.like.Bind(schema.LikePath(postID, viewer.ID))
	} else {
		v.like.Bind("")
	}

	return v
}

func (v *LikeView) precondition() error {
	if v.viewer.IsZero() {
		return service.ErrUnauthenticated
	}

	p := v.post.State()
	if p.Loading || v.like.State().Loading {
		return ErrLoading
	}

	if p.Data != nil && p.Data.OwnerID == v.viewer.ID {
		return service.ErrSelfAction
	}

	return nil
}

// State returns the displayed state. The counter follows the optimistic value.
func (v *LikeView) State() LikeState {
	p, l, t := v.post.State(), v.like.State(), v.toggle.State()

	s := LikeState{
		Liked:   t.Value,
		Phase:   t.Phase,
		Loading: p.Loading || l.Loading,
	}

	if p.Data != nil {
		s.Count = p.Data.LikesCount
	}

	// the counter is as of the post snapshot, which may lag behind the like snapshot or the mutation
	liked, ok := v.history.at(p.Version)
	if !ok {
		liked = l.Exists
	}

	switch {
	case t.Value && !liked:
		s.Count++
	case !t.Value && liked && s.Count > 0:
		s.Count--
	}

	return s
}

// Toggle likes or unlikes the post.
func (v *LikeView) Toggle(ctx context.Context) error {
	return v.toggle.Toggle(ctx)
}

// Close ...
func (v *LikeView) Close() {
	v.post.Close()
	v.like.Close()

	log.WithField("user", v.viewer.ID).Debug("like view closed")
}

type likeFact struct {
	version docstore.Version
	liked   bool
	// commit facts come from the view's own mutation; before version the opposite was true.
	commit bool
}

// likeHistory remembers recent states of the viewer's like, so the post counter can be
// compared with the like as of the same version.
type likeHistory struct {
	mu    sync.Mutex
	facts []likeFact
}

const maxLikeFacts = 16

func (h *likeHistory) observe(v docstore.Version, liked bool) {
	h.add(likeFact{version: v, liked: liked})
}

func (h *likeHistory) commit(v docstore.Version, liked bool) {
	h.add(likeFact{version: v, liked: liked, commit: true})
}

func (h *likeHistory) add(f likeFact) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := sort.Search(len(h.facts), func(i int) bool { return h.facts[i].version > f.version })
	h.facts = append(h.facts, likeFact{})
	copy(h.facts[i+1:], h.facts[i:])
	h.facts[i] = f

	if len(h.facts) > maxLikeFacts {
		h.facts = h.facts[len(h.facts)-maxLikeFacts:]
	}
}

// at returns the like as of version v, ok is false when nothing is known.
func (h *likeHistory) at(v docstore.Version) (liked bool, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.facts) == 0 {
		return false, false
	}

	i := sort.Search(len(h.facts), func(i int) bool { return h.facts[i].version > v })
	if i == 0 {
		f := h.facts[0]
		return f.liked != f.commit, true
	}

	return h.facts[i-1].liked, true
}

// FollowState ...
type FollowState struct {
	Following bool
	Phase     optimistic.Phase
	Loading   bool
}

// FollowView shows whether viewer follows target.
type FollowView struct {
	viewer entities.Identity
	target string
	edge   *subscription.Document[bool]
	toggle *optimistic.Toggle
	e      emitter[FollowState]
}

// Follow creates a follow view.
func (f *Factory) Follow(ctx context.Context, viewer entities.Identity, target string, onChange func(FollowState)) *FollowView {
	v := &FollowView{viewer: viewer, target: target, e: emitter[FollowState]{onChange: onChange}}

	v.toggle = optimistic.New(
		func(ctx context.Context, prior bool) (docstore.Version, error) {
			return f.cfg.Service.SetFollow(ctx, viewer, target, prior)
		},
		optimistic.WithPrecondition(v.precondition),
		optimistic.WithSettleTimeout(f.cfg.SettleTimeout),
		optimistic.WithOnChange(func(optimistic.State) { v.e.emit(v.State) }),
	)

	v.edge = subscription.NewDocument(ctx, f.cfg.Store, exists, func(s subscription.DocumentState[bool]) {
		if !s.Loading {
			v.toggle.Observe(s.Exists, s.Version)
		}
		v.e.emit(v.State)
	})

	if viewer.IsZero() || viewer.ID == target {
		v.edge.Bind("")
	} else {
		v.edge.Bind(schema.MemberPath(viewer.ID, entities.Following, target))
	}

	return v
}

func (v *FollowView) precondition() error {
	if v.viewer.IsZero() {
		return service.ErrUnauthenticated
	}

	if v.viewer.ID == v.target {
		return service.ErrSelfAction
	}

	if v.edge.State().Loading {
		return ErrLoading
	}

	return nil
}

// State ...
func (v *FollowView) State() FollowState {
	t := v.toggle.State()

	return FollowState{
		Following: t.Value,
		Phase:     t.Phase,
		Loading:   v.edge.State().Loading,
	}
}

// Toggle follows or unfollows target.
func (v *FollowView) Toggle(ctx context.Context) error {
	return v.toggle.Toggle(ctx)
}

// Close ...
func (v *FollowView) Close() {
	v.edge.Close()

	log.WithField("user", v.viewer.ID).WithField("target", v.target).Debug("follow view closed")
}
