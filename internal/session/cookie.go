package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer wraps session IDs into HS256 tokens for the session cookie, so a forged or
// altered cookie never reaches the store.
type Signer struct {
	key []byte
	now func() time.Time
}

// NewSigner constructs a signer with the given HMAC key.
func NewSigner(key []byte) *Signer { return &Signer{key: key, now: time.Now} }

// Sign returns the cookie value carrying id.
func (s *Signer) Sign(id string) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:       id,
		IssuedAt: jwt.NewNumericDate(s.now()),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse extracts the session ID from a cookie value.
func (s *Signer) Parse(value string) (string, error) {
	var claims jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return "", errors.New("invalid session cookie")
	}
	if claims.ID == "" {
		return "", errors.New("session cookie without id")
	}
	return claims.ID, nil
}
