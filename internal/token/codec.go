// Package token issues and verifies the signed, expiring, kind-tagged tokens
// used across the API. Each kind is signed with its own secret, so a token
// minted for one purpose can never be verified as another.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess   Kind = "access"
	KindRefresh  Kind = "refresh"
	KindPlayback Kind = "playback"
	KindInternal Kind = "internal"
)

// Kinds lists every kind the codec knows about.
var Kinds = []Kind{KindAccess, KindRefresh, KindPlayback, KindInternal}

// Token errors
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token has expired")
	ErrKindMismatch     = errors.New("token kind mismatch")
	ErrMalformed        = errors.New("malformed token")
	ErrUnknownKind      = errors.New("unknown token kind")
)

// Claims carries the registered claims plus the kind discriminator and the
// kind-specific fields. VideoID is set on playback and internal tokens,
// SessionID and Generation on refresh tokens.
type Claims struct {
	Kind       Kind   `json:"kind"`
	VideoID    string `json:"vid,omitempty"`
	SessionID  string `json:"sid,omitempty"`
	Generation int    `json:"gen,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrMalformed)
	}
	return id, nil
}

type Secrets struct {
	Access   string
	Refresh  string
	Playback string
	Internal string
}

type Codec struct {
	keys map[Kind][]byte
	now  func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(secrets Secrets, opts ...Option) (*Codec, error) {
	keys := map[Kind][]byte{
		KindAccess:   []byte(secrets.Access),
		KindRefresh:  []byte(secrets.Refresh),
		KindPlayback: []byte(secrets.Playback),
		KindInternal: []byte(secrets.Internal),
	}

	seen := make(map[string]Kind, len(keys))
	for _, kind := range Kinds {
		key := keys[kind]
		if len(key) == 0 {
			return nil, fmt.Errorf("token: empty secret for %s tokens", kind)
		}
		if other, dup := seen[string(key)]; dup {
			return nil, fmt.Errorf("token: %s and %s tokens share a secret", other, kind)
		}
		seen[string(key)] = kind
	}

	c := &Codec{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs claims as a token of the given kind valid for ttl. Kind,
// issued-at, expiry and token id are always set by the codec.
func (c *Codec) Issue(kind Kind, claims Claims, ttl time.Duration) (string, error) {
	key, ok := c.keys[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if claims.Subject == "" {
		return "", errors.New("token: subject is required")
	}

	now := c.now()
	claims.Kind = kind
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	return jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(key)
}

// Verify checks a token against the expected kind. The kind discriminator is
// read before any key is chosen, and only the expected kind's secret is ever
// used for the signature check.
func (c *Codec) Verify(tokenString string, expected Kind) (*Claims, error) {
	key, ok := c.keys[expected]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, expected)
	}

	var peek Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &peek); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if peek.Kind != expected {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrKindMismatch, peek.Kind, expected)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// Code returns the stable error code for a token-layer error, or "" when err
// is not one.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return "InvalidSignature"
	case errors.Is(err, ErrExpired):
		return "Expired"
	case errors.Is(err, ErrKindMismatch):
		return "KindMismatch"
	case errors.Is(err, ErrMalformed):
		return "Malformed"
	}
	return ""
}
