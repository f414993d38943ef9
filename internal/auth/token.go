package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lightspeed/jobforge/internal/jferr"
)

// TokenIssuer implements C9: stateless HMAC-signed bearer tokens carrying
// {sub, iat, exp}. There is no server-side session state beyond the signing
// key; rotating the key invalidates every previously minted token (I7).
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenIssuer(signingKey string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{signingKey: []byte(signingKey), ttl: ttl}
}

type claims struct {
	jwt.RegisteredClaims
}

// Issue mints a bearer token for principal, expiring after the issuer's TTL.
func (t *TokenIssuer) Issue(username string) (token string, expires time.Time, err error) {
	now := time.Now()
	expires = now.Add(t.ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := tok.SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{}, jferr.Wrap(jferr.System, "failed to sign token", err)
	}
	return signed, expires, nil
}

// Validate parses and verifies a bearer token, returning the principal
// username it carries. Expired tokens, tokens signed with a different key,
// and malformed tokens all fail identically as jferr.Auth (P7).
func (t *TokenIssuer) Validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", jferr.New(jferr.Auth, "invalid or expired token")
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return "", jferr.New(jferr.Auth, "invalid or expired token")
	}
	return c.Subject, nil
}
