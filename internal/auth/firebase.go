package auth

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"github.com/ting-rn/ting-sync/internal/entities"
)

type firebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier returns a Verifier which accepts Firebase ID tokens.
func NewFirebaseVerifier(client *auth.Client) Verifier {
	return &firebaseVerifier{client: client}
}

func (v *firebaseVerifier) Verify(ctx context.Context, token string) (entities.Identity, error) {
	t, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		log.WithError(err).Debug("failed to verify id token")
		return entities.Identity{}, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	id := entities.Identity{
		ID:       t.UID,
		Provider: t.Firebase.SignInProvider,
	}

	if email, ok := t.Claims["email"].(string); ok {
		id.Email = email
	}

	if id.Provider == "" {
		id.Provider = DefaultProvider
	}

	return id, nil
}
