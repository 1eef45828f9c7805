// Package auth verifies the bearer tokens issued by the account service.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// Principal is the caller named by a verified token.
type Principal struct {
	UserID string
	Name   string
}

type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Verifier checks HS256 tokens. Issuer is enforced when set.
type Verifier struct {
	Secret []byte
	Issuer string
	Now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{Secret: []byte(secret), Issuer: strings.TrimSpace(issuer), Now: time.Now}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(v.Secret) == 0 {
		return Principal{}, ErrUnauthorized
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	var parsed claims
	if _, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...); err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return Principal{UserID: parsed.Subject, Name: parsed.Name}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func (v *Verifier) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

// Sign issues a token for p. The account service owns issuance in
// production; this serves local tooling and tests.
func Sign(secret, issuer string, p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: p.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
