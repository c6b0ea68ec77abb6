package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		envKey string
		want   string
		ok     bool
	}{
		{name: "simple", envKey: "prod", want: "prod", ok: true},
		{name: "uppercase normalized", envKey: "Prod", want: "prod", ok: true},
		{name: "with digits and dashes", envKey: "venue-42", want: "venue-42", ok: true},
		{name: "surrounding whitespace", envKey: " staging ", want: "staging", ok: true},
		{name: "empty", envKey: "", ok: false},
		{name: "single char", envKey: "x", ok: false},
		{name: "leading digit", envKey: "1prod", ok: false},
		{name: "leading dash", envKey: "-prod", ok: false},
		{name: "illegal chars", envKey: "prod_1", ok: false},
		{name: "too long", envKey: "abcdefghijklmnopqrstuvwxyz-0123456789", ok: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			space, err := Resolve(tc.envKey)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, space.ID)
		})
	}
}

func TestBasePath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tenants/prod", Space{ID: "prod"}.BasePath())
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithSpace(context.Background(), Space{ID: "prod"})

	space, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "prod", space.ID)

	space, err := RequireFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, "prod", space.ID)
}

func TestRequireFromContextMissing(t *testing.T) {
	t.Parallel()

	_, err := RequireFromContext(context.Background())
	require.ErrorIs(t, err, ErrMissingSpace)
}
