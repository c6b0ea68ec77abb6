package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	platformauth "github.com/openmic-live/openmic/platform/go/auth"
	platformlogging "github.com/openmic-live/openmic/platform/go/logging"
	"github.com/openmic-live/openmic/platform/go/permission"
	"github.com/openmic-live/openmic/platform/go/session"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

// Session populates the context with the request-scoped Session, including the
// principal's effective roles for the tenant, so services can authorize and
// attribute every mutation. It must run after authentication and tenant
// middleware so verified credentials and the tenant space are available.
func Session(resolver *permission.Resolver) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("session middleware: permission resolver is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := platformlogging.FromRequest(r, nil)
			requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

			var sess session.Session
			if creds, ok := platformauth.FromContext(r.Context()); ok && creds != nil {
				var err error
				sess, err = session.FromCredentials(creds, requestID)
				if err != nil {
					if logger != nil {
						logger.Error("build session from credentials", zap.Error(err))
					}
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}

				if space, ok := tenant.FromContext(r.Context()); ok {
					roles, err := resolver.Resolve(r.Context(), sess.PrincipalID, space)
					if err != nil {
						// Role resolution trouble must not lock guests out.
						if logger != nil {
							logger.Warn("resolve roles", zap.Error(err))
						}
						roles = []permission.Role{permission.RoleGuest}
					}
					sess.Roles = roles
				}
			} else {
				sess = session.Anonymous(requestID)
			}

			ctx := session.IntoContext(r.Context(), sess)
			if logger != nil {
				fields := []zap.Field{zap.String("actor_kind", string(sess.ActorKind))}
				if sess.PrincipalID != "" {
					fields = append(fields, zap.String("principal_id", sess.PrincipalID))
				}
				logger = logger.With(fields...)
				ctx = platformlogging.WithLogger(ctx, logger)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
