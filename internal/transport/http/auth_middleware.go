package httptransport

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"labyrinth-server/internal/auth"
	"labyrinth-server/internal/store"

	"github.com/go-chi/httplog/v3"
)

type principalContextKey struct{}

func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(auth.Principal)
	return p, ok
}

type UserStore interface {
	EnsureUser(ctx context.Context, id, name string) (store.User, error)
}

func withPrincipal(r *http.Request, p auth.Principal) *http.Request {
	httplog.SetAttrs(r.Context(), slog.String("user_id", p.UserID))
	return r.WithContext(context.WithValue(r.Context(), principalContextKey{}, p))
}

// UserAuthMiddleware requires a valid bearer token and upserts the caller's
// user row before the handler runs.
func UserAuthMiddleware(verifier *auth.Verifier, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			p, err := verifier.Verify(token)
			if err != nil {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, err := users.EnsureUser(r.Context(), p.UserID, p.Name); err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			next.ServeHTTP(w, withPrincipal(r, p))
		})
	}
}

// OptionalViewer attaches the caller when a valid bearer token is sent and
// lets anonymous requests through. A bad token is treated as anonymous.
func OptionalViewer(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
				if p, err := verifier.Verify(token); err == nil {
					r = withPrincipal(r, p)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func viewerID(r *http.Request) string {
	p, _ := PrincipalFromContext(r.Context())
	return p.UserID
}

// AdminAuthMiddleware guards operator routes. An empty key leaves them open,
// which is only meant for local runs.
func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && !CheckAdminAuth(r, adminKey) {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckAdminAuth accepts the key in X-Admin-Key or as a bearer token.
func CheckAdminAuth(r *http.Request, adminKey string) bool {
	got := r.Header.Get("X-Admin-Key")
	if got == "" {
		got, _ = auth.BearerToken(r.Header.Get("Authorization"))
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) == 1
}
