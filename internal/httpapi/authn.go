package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"storegrid.io/internal/auth"
	"storegrid.io/internal/obs"
)

const (
	authHeader  = "Authorization"
	bearer      = "Bearer "
	storeHeader = "X-Store-ID"
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/register",
	"/v1/auth/refresh",
	"/v1/auth/bootstrap",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
}

// withAuth is the first security checkpoint. Outside the public allow-list
// it requires a valid access token and resolves user, tenant and membership
// against the database before the handler runs.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		ident, err := a.resolver.ResolveIdentity(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				obs.ObserveRevokedRejection()
			}
			handleAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), ident)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withStore is the second checkpoint. It only acts when the X-Store-ID
// header is present and an identity has been resolved; it validates the
// store and the caller's assignment to it.
func (a *API) withStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		storeID := strings.TrimSpace(r.Header.Get(storeHeader))
		if storeID == "" {
			next.ServeHTTP(w, r)
			return
		}

		store, err := a.resolver.ResolveStore(r.Context(), ident, storeID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithActiveStore(r.Context(), store)))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
