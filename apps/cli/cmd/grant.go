package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openmic-live/openmic/platform/go/permission"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

var (
	flagGrantPrincipal string
	flagGrantRole      string
	flagGrantTenant    string
	flagGrantTTL       time.Duration
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Assign a role to a principal",
	Long: `Writes a permission grant. Use --tenant all for a grant that spans
every tenant space; omit --ttl for a grant that never expires.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		role := permission.Role(flagGrantRole)
		if !role.Known() {
			return fmt.Errorf("unknown role %q", flagGrantRole)
		}
		if flagGrantPrincipal == "" {
			return fmt.Errorf("--principal is required")
		}

		var tenantID string
		switch flagGrantTenant {
		case permission.TenantAll:
			tenantID = permission.TenantAll
		case "":
			space, err := resolveSpace()
			if err != nil {
				return err
			}
			tenantID = space.ID
		default:
			space, err := tenant.Resolve(flagGrantTenant)
			if err != nil {
				return err
			}
			tenantID = space.ID
		}

		client, err := firestoreClient(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		grant := permission.Grant{
			Principal: flagGrantPrincipal,
			Tenant:    tenantID,
			Role:      role,
			GrantedBy: "admin-cli",
			GrantedAt: time.Now().UTC(),
		}
		if flagGrantTTL > 0 {
			expires := time.Now().UTC().Add(flagGrantTTL)
			grant.ExpiresAt = &expires
		}

		store := permission.NewFirestoreGrantStore(client)
		if err := store.Put(cmd.Context(), grant); err != nil {
			return err
		}

		logger.Info("grant recorded",
			zap.String("principal", grant.Principal),
			zap.String("tenant", grant.Tenant),
			zap.String("role", string(grant.Role)))
		return nil
	},
}

func init() {
	grantCmd.Flags().StringVar(&flagGrantPrincipal, "principal", "", "principal id to grant the role to")
	grantCmd.Flags().StringVar(&flagGrantRole, "role", "", "role to grant (super_admin, admin, developer, tester, host, guest)")
	grantCmd.Flags().StringVar(&flagGrantTenant, "tenant", "", `tenant scope, or "all"`)
	grantCmd.Flags().DurationVar(&flagGrantTTL, "ttl", 0, "optional grant lifetime (0 = never expires)")
	rootCmd.AddCommand(grantCmd)
}
