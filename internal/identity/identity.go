// Package identity carries the authenticated user through a request.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoIdentity   = errors.New("identity: not authenticated")
	ErrInvalidToken = errors.New("identity: invalid token")
)

// Identity is the user a request acts for.
type Identity struct {
	UID   string `json:"uid"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UID != ""
}

type claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	devUID string
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator for tokens signed with secret.
// When devUID is set, requests without a token act as that user.
func NewAuthenticator(secret, devUID string) *Authenticator {
	return &Authenticator{secret: []byte(secret), devUID: devUID, now: time.Now}
}

// IssueToken signs a token for id that expires after ttl.
func (a *Authenticator) IssueToken(id Identity, ttl time.Duration) (string, error) {
	if id.UID == "" {
		return "", fmt.Errorf("%w: empty uid", ErrInvalidToken)
	}
	if len(a.secret) == 0 {
		return "", errors.New("identity: no signing secret configured")
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:  id.Name,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// Verify parses a signed token and returns its identity.
func (a *Authenticator) Verify(tokenString string) (Identity, error) {
	if len(a.secret) == 0 {
		return Identity{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{UID: c.Subject, Name: c.Name, Email: c.Email}, nil
}

// Authenticate resolves the identity of a request from its bearer token or
// auth_token cookie.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	token := bearer(r)
	if token == "" {
		if a.devUID != "" {
			return Identity{UID: a.devUID, Name: a.devUID}, nil
		}
		return Identity{}, ErrNoIdentity
	}
	return a.Verify(token)
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie("auth_token"); err == nil {
		return c.Value
	}
	return ""
}

// Middleware rejects unauthenticated requests with 401 and stores the
// identity in the request context for the next handler.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="studyset"`)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error":     "authentication required",
				"code":      "unauthenticated",
				"retryable": false,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
