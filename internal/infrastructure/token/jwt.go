// Package token signs and verifies the HS256 bearer credentials that carry a
// principal's id and role.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storefront/storefront-api/internal/core/domain"
)

const defaultTTL = 24 * time.Hour

var ErrMalformedClaims = errors.New("token claims missing id or role")

// Claims is the payload written into every token.
type Claims struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Codec holds the process-wide signing secret. It is immutable after
// construction and safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for p that expires after the codec TTL.
func (c *Codec) Sign(p domain.Principal, username string) (string, error) {
	now := c.now()
	claims := Claims{
		ID:       p.ID,
		Role:     string(p.Role),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the encoded principal.
func (c *Codec) Verify(raw string) (domain.Principal, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("verify token: %w", err)
	}
	if !tkn.Valid {
		return domain.Principal{}, fmt.Errorf("verify token: %w", jwt.ErrTokenInvalidClaims)
	}

	role := domain.Role(claims.Role)
	if claims.ID == "" || !role.Valid() {
		return domain.Principal{}, ErrMalformedClaims
	}
	return domain.Principal{ID: claims.ID, Role: role}, nil
}
