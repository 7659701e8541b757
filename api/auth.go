package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/generic"
)

// =============================================================================
// AUTHENTICATION - HS256 bearer tokens
// =============================================================================

// Claims carries the caller identity. Subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Issue signs a token for userID. Used by tests and operator tooling; login
// itself lives with the identity service.
func (a *Authenticator) Issue(userID generic.UserID, role generic.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a token and returns the caller it names.
func (a *Authenticator) Parse(token string) (booking.Caller, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return booking.Caller{}, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return booking.Caller{}, errors.New("invalid token: missing subject")
	}
	return booking.Caller{
		UserID: generic.UserID(claims.Subject),
		Admin:  generic.Role(claims.Role) == generic.RoleAdmin,
	}, nil
}

type callerKey struct{}

func withCaller(ctx context.Context, c booking.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the authenticated caller stored by Middleware.
func CallerFrom(ctx context.Context) (booking.Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(booking.Caller)
	return c, ok
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		caller, err := a.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

// RequireAdmin must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFrom(r.Context())
		if !ok || !caller.Admin {
			writeError(w, http.StatusForbidden, "Admin only", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
