// Package token signs and verifies the two bearer token classes (access and
// refresh) and computes the at-rest hash used to store refresh tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class selects the secret and expiry policy used for a token.
type Class string

const (
	Access  Class = "access"
	Refresh Class = "refresh"
)

var (
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrExpired          = errors.New("token: expired")
	ErrMissingSubject   = errors.New("token: missing subject")
	ErrUnknownClass     = errors.New("token: unknown class")
)

// Config holds the secrets and expiry policy of both token classes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Payload is the fixed claim set carried by every token.
type Payload struct {
	ID        string
	SubjectID string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type policy struct {
	secret []byte
	ttl    time.Duration
}

// Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	policies map[Class]policy
	now      func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("token: both secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: expiry must be positive")
	}

	c := &Codec{
		policies: map[Class]policy{
			Access:  {secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
			Refresh: {secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the expiry policy of the class.
func (c *Codec) TTL(class Class) time.Duration {
	return c.policies[class].ttl
}

// Sign issues a token of the given class. Every token carries a random ID so
// two tokens minted in the same second for the same user never coincide.
func (c *Codec) Sign(subjectID, role string, class Class) (string, *Payload, error) {
	p, ok := c.policies[class]
	if !ok {
		return "", nil, ErrUnknownClass
	}
	if subjectID == "" {
		return "", nil, ErrMissingSubject
	}

	now := c.now()
	payload := &Payload{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(p.ttl),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        payload.ID,
			Subject:   subjectID,
			Audience:  jwt.ClaimStrings{string(class)},
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
	})

	signed, err := tok.SignedString(p.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign %s token: %w", class, err)
	}
	return signed, payload, nil
}

// Verify checks signature, audience and expiry against the class policy.
func (c *Codec) Verify(raw string, class Class) (*Payload, error) {
	p, ok := c.policies[class]
	if !ok {
		return nil, ErrUnknownClass
	}

	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(class)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	cl, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	if cl.Subject == "" {
		return nil, ErrMissingSubject
	}

	payload := &Payload{
		ID:        cl.ID,
		SubjectID: cl.Subject,
		Role:      cl.Role,
	}
	if cl.IssuedAt != nil {
		payload.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		payload.ExpiresAt = cl.ExpiresAt.Time
	}
	return payload, nil
}
