package handler

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/shop-orders/internal/domain/user"
)

// Claims is the JWT payload. Subject holds the user id.
type Claims struct {
	Role user.Role `json:"role"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// Auth verifies HS256 bearer tokens and enforces roles.
type Auth struct {
	secret   []byte
	disabled bool
}

// NewAuth returns an Auth using secret. With disabled set every request is
// let through unauthenticated, which is only meant for local development.
func NewAuth(secret string, disabled bool) *Auth {
	return &Auth{secret: []byte(secret), disabled: disabled}
}

// IssueToken signs a token for userID with role, valid for ttl.
func (a *Auth) IssueToken(userID string, role user.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

func (a *Auth) parse(header string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if !claims.Role.Valid() {
		return nil, errors.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// claims in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.disabled {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := a.parse(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// Require lets through requests whose role is one of roles.
func (a *Auth) Require(roles ...user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.disabled {
				next.ServeHTTP(w, r)
				return
			}
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			if !slices.Contains(roles, claims.Role) {
				writeError(w, r, http.StatusForbidden, "forbidden", "forbidden resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
