package auth

import "context"

type identityContextKey struct{}
type storeContextKey struct{}
type tokenContextKey struct{}

// ContextWithIdentity attaches the resolved request identity to the context.
func ContextWithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &ident)
}

// IdentityFromContext extracts the resolved identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil {
		return Identity{}, false
	}
	return *v, true
}

// ContextWithActiveStore attaches the selected store to the context.
func ContextWithActiveStore(ctx context.Context, store Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, &store)
}

// ActiveStoreFromContext returns the store selected via the request header,
// if any.
func ActiveStoreFromContext(ctx context.Context) (Store, bool) {
	if ctx == nil {
		return Store{}, false
	}
	v, ok := ctx.Value(storeContextKey{}).(*Store)
	if !ok || v == nil {
		return Store{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
