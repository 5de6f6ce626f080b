// Package downloadauth mints and verifies the short-lived bearer tokens
// a "priv" file-download hook attaches to its fetch, standing in for the
// presigned-URL mechanism a cloud object-store SDK would otherwise provide:
// the token authorizes one URI for a bounded window rather than the whole
// bucket indefinitely.
package downloadauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints and verifies bearer tokens scoped to a single URI, signed
// with HS256 under a shared key configured out of band (DownloadAuthConfig).
type Signer struct {
	key []byte
	ttl time.Duration
}

// NewSigner returns a Signer whose minted tokens are valid for ttl.
func NewSigner(key string, ttl time.Duration) *Signer {
	return &Signer{key: []byte(key), ttl: ttl}
}

type uriClaims struct {
	URI string `json:"uri"`
	jwt.RegisteredClaims
}

// Mint returns a bearer token authorizing a fetch of uri until the
// signer's ttl elapses.
func (s *Signer) Mint(uri string) (string, error) {
	claims := uriClaims{
		URI: uri,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("downloadauth: signing token for %s: %w", uri, err)
	}
	return signed, nil
}

// Verify checks that tokenStr is an unexpired signature authorizing uri.
func (s *Signer) Verify(tokenStr, uri string) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, &uriClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return fmt.Errorf("downloadauth: %w", err)
	}
	claims, ok := parsed.Claims.(*uriClaims)
	if !ok || !parsed.Valid {
		return fmt.Errorf("downloadauth: token not valid")
	}
	if claims.URI != uri {
		return fmt.Errorf("downloadauth: token authorizes %q, not %q", claims.URI, uri)
	}
	return nil
}
