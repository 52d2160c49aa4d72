// Package auth verifies client identity tokens for websocket and HTTP
// requests. Tokens are HS256 JWTs whose subject claim identifies the
// person on the other end of the call.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Principal identifies an authenticated caller.
type Principal struct {
	SubjectID string
}

type ctxKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom extracts the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

var (
	ErrNoToken      = errors.New("auth: no token presented")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier validates bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// TokenFrom pulls a bearer token from the request. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted
// alongside the Authorization and X-Auth-Token headers.
func TokenFrom(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(h, prefix) {
			return strings.TrimSpace(h[len(prefix):]), true
		}
	}
	if h := r.Header.Get("X-Auth-Token"); h != "" {
		return h, true
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, true
	}
	return "", false
}

// Verify parses and validates a token, returning the principal it names.
// Expired or malformed tokens yield ErrInvalidToken.
func (v *Verifier) Verify(token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}
	return Principal{SubjectID: subject}, nil
}

// Authenticate resolves the principal for a request. A missing token
// yields ErrNoToken so callers can distinguish absent from rejected.
func (v *Verifier) Authenticate(r *http.Request) (Principal, error) {
	token, ok := TokenFrom(r)
	if !ok {
		return Principal{}, ErrNoToken
	}
	return v.Verify(token)
}
