package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/users"
	"go.uber.org/zap"
)

// Principal is the authenticated caller.
type Principal struct {
	Email string
	Role  users.Role
}

type principalKey struct{}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// TokenVerifier turns a bearer token into the email it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (email string, err error)
}

type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
}

type Auth struct {
	Tokens TokenVerifier
	Users  UserFinder
	Log    *zap.Logger
}

func (a *Auth) log() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// Authenticate requires a valid bearer token.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized access")
			return
		}
		email, err := a.Tokens.Verify(r.Context(), token)
		if err != nil {
			a.log().Debug("token rejected", zap.Error(err))
			writeError(w, http.StatusForbidden, "forbidden access")
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), Principal{Email: email})))
	})
}

// RequireAdmin runs after Authenticate and lets only admins through.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || p.Email == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized access")
			return
		}
		u, err := a.Users.GetByEmail(r.Context(), p.Email)
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusForbidden, "forbidden access")
			return
		}
		if err != nil {
			a.log().Error("admin lookup failed", zap.String("email", p.Email), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		if u.Role != users.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden access")
			return
		}
		p.Role = u.Role
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// RequireSelf lets the request through only when ?email= names the caller.
func (a *Auth) RequireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok || p.Email != r.URL.Query().Get("email") {
			writeError(w, http.StatusForbidden, "forbidden access")
			return
		}
		next.ServeHTTP(w, r)
	})
}
