package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

// Space captures the resolved tenant namespace for a request. Tenants are
// provisioned at deploy time (one per environment, e.g. dev/test/prod); the
// engine never creates them at runtime.
type Space struct {
	ID string
}

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]{1,31}$`)

// Resolve derives the tenant Space from the deployment environment key.
// The key doubles as the tenant identifier, so every document written by this
// deployment lives under a namespace no other environment can reach.
func Resolve(envKey string) (Space, error) {
	key := strings.TrimSpace(strings.ToLower(envKey))
	if !idPattern.MatchString(key) {
		return Space{}, fmt.Errorf("invalid tenant env key %q", envKey)
	}
	return Space{ID: key}, nil
}

// BasePath returns the Firestore document path prefix for the tenant,
// `tenants/<id>`. All collections of the engine hang below it.
func (s Space) BasePath() string {
	return "tenants/" + s.ID
}
