// Package auth contains token verification, session events and app bootstrap.
package auth

//go:generate mockgen -destination=./mock/auth.go -package=mock -source=auth.go

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/entities"
)

var log = logrus.WithField("layer", "auth").WithField("package", "auth")

// ErrInvalidToken is returned when token can not be verified.
var ErrInvalidToken = errors.New("invalid token")

// DefaultProvider is used when token does not carry a sign-in provider.
const DefaultProvider = "password"

// Verifier turns a bearer token into an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (entities.Identity, error)
}
