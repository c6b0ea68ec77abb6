package tenant

import (
	"context"
	"errors"
	"net/http"
)

type ctxKey string

const spaceKey ctxKey = "OPENMIC_TENANT_SPACE"

// ErrMissingSpace is returned by RequireFromContext when no tenant has been attached.
var ErrMissingSpace = errors.New("tenant space missing from context")

// WithSpace returns a derived context carrying the tenant Space.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, spaceKey, space)
}

// FromContext extracts the tenant Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	v := ctx.Value(spaceKey)
	if v == nil {
		return Space{}, false
	}

	space, ok := v.(Space)
	return space, ok
}

// RequireFromContext extracts the tenant Space or fails. Repositories call this
// so that no read or write can ever address documents outside the namespace.
func RequireFromContext(ctx context.Context) (Space, error) {
	space, ok := FromContext(ctx)
	if !ok {
		return Space{}, ErrMissingSpace
	}
	return space, nil
}

// Middleware attaches the deployment's tenant Space to every request context.
// The tenant is a deployment property, never a caller-supplied value.
func Middleware(space Space) func(http.Handler) http.Handler {
	if space.ID == "" {
		panic("tenant middleware: space is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithSpace(r.Context(), space)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
