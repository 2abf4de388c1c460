// Package identity carries the authenticated caller through a request.
// Handlers resolve the caller once from the Authorization header; domain
// code receives it as an explicit value, never reads auth state itself.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/agendou/api/internal/model"
	"github.com/agendou/api/libs/auth"
)

type Caller struct {
	UserID string
	Name   string
	Role   model.Role
}

// Anonymous reports whether the request carried no authenticated user.
func (c Caller) Anonymous() bool {
	return c.UserID == ""
}

type ctxKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(ctxKey{}).(Caller)
	return c, ok
}

// RequireAuth rejects requests without a valid bearer token and stores
// the caller on the request context.
func RequireAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFromRequest(r, jwtSecret)
		if !ok {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// OptionalAuth stores the caller when a valid token is present and lets
// anonymous requests through untouched. Guest booking endpoints use it.
func OptionalAuth(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller, ok := callerFromRequest(r, jwtSecret); ok {
			r = r.WithContext(WithCaller(r.Context(), caller))
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(next http.Handler, roles ...model.Role) http.Handler {
	allowed := map[model.Role]struct{}{}
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if _, ok := allowed[caller.Role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFromRequest(r *http.Request, jwtSecret string) (Caller, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") || len(strings.TrimSpace(authHeader)) <= len("Bearer ") {
		return Caller{}, false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	claims, err := auth.ParseAndVerifyHS256(token, jwtSecret)
	if err != nil {
		return Caller{}, false
	}

	role := model.Role(claims.Role)
	if !role.Valid() {
		return Caller{}, false
	}
	return Caller{UserID: claims.Sub, Name: claims.Name, Role: role}, true
}
