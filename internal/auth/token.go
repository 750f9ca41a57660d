// ABOUTME: HS256 session token codec: issues, decodes, and validates bearer tokens
// ABOUTME: Signing key is derived once from a base64 secret at construction time

package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum decoded secret size for HS256 (256 bits).
const MinSecretLength = 32

// DefaultTokenTTL is used when no TTL is configured.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Token errors
var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrInvalidSignature     = errors.New("invalid token signature")
	ErrExpiredToken         = errors.New("token expired")
	ErrMissingSubject       = errors.New("token subject is required")
	ErrSigningKeyDerivation = errors.New("signing key derivation failed")
)

// Registered claim names managed by the codec. Values supplied under these
// keys in extra claims are replaced.
const (
	claimSubject   = "sub"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"

	// claimNotBefore is never issued. The parser always checks it, so an
	// extra value could make a freshly issued token fail to decode.
	claimNotBefore = "nbf"
)

// Claims is the payload embedded in a session token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// signingKey is the HMAC key material. It never leaves the codec.
type signingKey []byte

// deriveSigningKey decodes the configured secret. The secret is standard
// base64 (with padding); the same secret always yields the same key.
func deriveSigningKey(secret string) (signingKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrSigningKeyDerivation)
	}
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: secret is not valid base64: %v", ErrSigningKeyDerivation, err)
	}
	if len(raw) < MinSecretLength {
		return nil, fmt.Errorf("%w: secret decodes to %d bytes, need at least %d",
			ErrSigningKeyDerivation, len(raw), MinSecretLength)
	}
	return signingKey(raw), nil
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec encodes subjects into signed tokens and decodes them back into Claims.
// It is immutable after construction and safe for concurrent use.
type Codec struct {
	key    signingKey
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec derives the signing key from secret and returns a ready codec.
// A derivation error wraps ErrSigningKeyDerivation and should stop startup.
func NewCodec(secret string, ttl time.Duration, opts ...CodecOption) (*Codec, error) {
	key, err := deriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	if ttl < time.Second {
		return nil, fmt.Errorf("token TTL must be at least 1s, got %v", ttl)
	}

	c := &Codec{
		key: key,
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// TTL returns the lifetime applied to newly issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode issues a token for subject. Timestamps are whole seconds since the
// epoch; expiry is issuedAt + TTL.
func (c *Codec) Encode(subject string, extra map[string]any) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}

	issuedAt := c.now().Truncate(time.Second)
	claims := make(jwt.MapClaims, len(extra)+3)
	for k, v := range extra {
		if k == claimNotBefore {
			continue
		}
		claims[k] = v
	}
	claims[claimSubject] = subject
	claims[claimIssuedAt] = issuedAt.Unix()
	claims[claimExpiresAt] = issuedAt.Add(c.ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(c.key))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies token and returns its claims. Failures wrap
// ErrMalformedToken, ErrInvalidSignature, or ErrExpiredToken.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, fmt.Errorf("%w: token must have exactly three segments", ErrMalformedToken)
	}

	// Header and payload are checked first so that any later decoding
	// failure can only come from the signature segment.
	if _, _, err := c.parser.ParseUnverified(tokenString, jwt.MapClaims{}); err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	mapClaims := jwt.MapClaims{}
	_, err := c.parser.ParseWithClaims(tokenString, mapClaims, c.keyFunc)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return claimsFromMap(mapClaims)
}

// Validate reports whether Decode would succeed.
func (c *Codec) Validate(tokenString string) bool {
	_, err := c.Decode(tokenString)
	return err == nil
}

func (c *Codec) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(c.key), nil
}

// claimsFromMap splits registered claims from the open-ended extras.
func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	sub, err := m.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformedToken)
	}

	iat, err := m.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if iat == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrMalformedToken)
	}

	exp, err := m.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrMalformedToken)
	}

	extra := make(map[string]any, len(m))
	for k, v := range m {
		switch k {
		case claimSubject, claimIssuedAt, claimExpiresAt:
			continue
		}
		extra[k] = v
	}

	return &Claims{
		Subject:   sub,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
		Extra:     extra,
	}, nil
}
