package session

import (
	"context"
	"errors"

	platformauth "github.com/openmic-live/openmic/platform/go/auth"
	"github.com/openmic-live/openmic/platform/go/permission"
)

type contextKey string

const ctxSession contextKey = "OPENMIC_SESSION"

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// Session is the request-scoped actor record the engine receives on every call.
// The engine keeps no state between requests; everything it needs to know about
// the caller travels in this value.
type Session struct {
	ActorKind   ActorKind
	PrincipalID string
	DisplayName string
	RequestID   string
	Roles       []permission.Role
}

// HasRole reports whether the session satisfies the required role level.
func (s Session) HasRole(required permission.Role) bool {
	return permission.HasAtLeast(s.Roles, required)
}

// IsUser reports whether the session belongs to an authenticated principal.
func (s Session) IsUser() bool {
	return s.ActorKind == ActorKindUser && s.PrincipalID != ""
}

// IntoContext stores the Session in the provided context.
func IntoContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxSession, s)
}

// FromContext extracts the Session from context, returning false when not present.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	v := ctx.Value(ctxSession)
	if v == nil {
		return Session{}, false
	}

	s, ok := v.(Session)
	return s, ok
}

// FromContextOrAnonymous returns the Session stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) Session {
	if s, ok := FromContext(ctx); ok {
		return s
	}
	return Anonymous("")
}

// FromCredentials builds a Session from verified credentials and a request ID.
func FromCredentials(creds *platformauth.Credentials, requestID string) (Session, error) {
	if creds == nil {
		return Session{}, errors.New("credentials are required to build a session")
	}
	if creds.ID == "" {
		return Session{}, errors.New("principal id is required to build a session")
	}

	name := ""
	if creds.Name != nil {
		name = *creds.Name
	}

	return Session{
		ActorKind:   ActorKindUser,
		PrincipalID: creds.ID,
		DisplayName: name,
		RequestID:   requestID,
	}, nil
}

// Anonymous builds a Session for unauthenticated requests.
func Anonymous(requestID string) Session {
	return Session{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds a Session for background operations such as the stale-party
// sweep. System actors carry super_admin so lifecycle guards let them through.
func System(requestID string) Session {
	return Session{
		ActorKind: ActorKindSystem,
		RequestID: requestID,
		Roles:     []permission.Role{permission.RoleSuperAdmin},
	}
}
