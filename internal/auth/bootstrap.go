package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
)

// Status ...
type Status string

const (
	// Unauthenticated ...
	Unauthenticated Status = "unauthenticated"
	// NeedsOnboarding means the user is signed in but has no user name or country yet.
	NeedsOnboarding Status = "needsOnboarding"
	// Authenticated ...
	Authenticated Status = "authenticated"
)

// LocalState keeps auth state between runs.
type LocalState interface {
	AuthToken(ctx context.Context) (string, error)
	SetAuthToken(ctx context.Context, token string) error
	ClearAuthToken(ctx context.Context) error
	HasLoggedInBefore(ctx context.Context) (bool, error)
	MarkHasLoggedInBefore(ctx context.Context) error
}

// Users ...
type Users interface {
	GetUser(ctx context.Context, uid string) (*entities.User, error)
}

// Result ...
type Result struct {
	Status            Status
	Identity          entities.Identity
	User              *entities.User
	HasLoggedInBefore bool
}

// Bootstrapper resolves app status on start and on sign-in.
type Bootstrapper struct {
	sessions *Sessions
	users    Users
	state    LocalState
}

// NewBootstrapper ...
func NewBootstrapper(sessions *Sessions, users Users, state LocalState) *Bootstrapper {
	return &Bootstrapper{
		sessions: sessions,
		users:    users,
		state:    state,
	}
}

// Bootstrap signs in with token, or with the cached token when token is empty, and resolves status.
// Verification and lookup failures resolve to Unauthenticated; only local state failures are returned.
func (b *Bootstrapper) Bootstrap(ctx context.Context, token string) (Result, error) {
	var (
		res Result
		err error
	)

	if res.HasLoggedInBefore, err = b.state.HasLoggedInBefore(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to read local state: %w", err)
	}

	if token == "" {
		if token, err = b.state.AuthToken(ctx); err != nil {
			return Result{}, fmt.Errorf("failed to read local state: %w", err)
		}
	}

	if token == "" {
		res.Status = Unauthenticated
		return res, nil
	}

	id, err := b.sessions.SignIn(ctx, token)
	if err != nil {
		log.WithError(err).Debug("failed to sign in")

		if err := b.state.ClearAuthToken(ctx); err != nil {
			return Result{}, fmt.Errorf("failed to clear auth token: %w", err)
		}

		res.Status = Unauthenticated
		return res, nil
	}

	if err := b.state.SetAuthToken(ctx, token); err != nil {
		return Result{}, fmt.Errorf("failed to save auth token: %w", err)
	}

	if err := b.state.MarkHasLoggedInBefore(ctx); err != nil {
		return Result{}, fmt.Errorf("failed to save local state: %w", err)
	}

	res.Identity = id

	user, err := b.users.GetUser(ctx, id.ID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		res.Status = NeedsOnboarding
	case err != nil:
		log.WithError(err).WithField("user", id.ID).Error("failed to get user")
		return Result{Status: Unauthenticated, HasLoggedInBefore: res.HasLoggedInBefore}, nil
	case user.NeedsOnboarding():
		res.Status, res.User = NeedsOnboarding, user
	default:
		res.Status, res.User = Authenticated, user
	}

	return res, nil
}

// SignOut clears the cached token and notifies subscribers.
func (b *Bootstrapper) SignOut(ctx context.Context, id entities.Identity) error {
	if err := b.state.ClearAuthToken(ctx); err != nil {
		return fmt.Errorf("failed to clear auth token: %w", err)
	}

	b.sessions.SignOut(id)

	return nil
}
