package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ting-rn/ting-sync/internal/entities"
)

// Claims ...
type Claims struct {
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 tokens. It is used when the app runs without Firebase.
type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT ...
func NewJWT(secret string, ttl time.Duration) (*JWT, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}

	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for identity.
func (j *JWT) Issue(id entities.Identity) (string, error) {
	now := j.now()

	c := Claims{
		Email:    id.Email,
		Provider: id.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.ID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if j.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(j.ttl))
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return s, nil
}

// Verify ...
func (j *JWT) Verify(_ context.Context, token string) (entities.Identity, error) {
	var c Claims

	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return entities.Identity{}, fmt.Errorf("%w: %s", ErrInvalidToken, err.Error())
	}

	if c.Subject == "" {
		return entities.Identity{}, fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}

	if c.Provider == "" {
		c.Provider = DefaultProvider
	}

	return entities.Identity{ID: c.Subject, Email: c.Email, Provider: c.Provider}, nil
}
