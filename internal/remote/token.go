package remote

import "context"

type bearerKey struct{}

// WithBearer returns a context carrying a session token to forward upstream.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerHeaders returns an Authorization header for the token carried by
// ctx, or nil when there is none. It fits the per-request header hooks of
// the listing fetcher and asset source.
func BearerHeaders(ctx context.Context) map[string]string {
	tok, _ := ctx.Value(bearerKey{}).(string)
	if tok == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}
