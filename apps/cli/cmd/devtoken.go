package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	platformauth "github.com/openmic-live/openmic/platform/go/auth"
)

var (
	flagTokenUID   string
	flagTokenEmail string
	flagTokenName  string
)

var devTokenCmd = &cobra.Command{
	Use:   "devtoken",
	Short: "Print an unsigned bearer token for local development",
	RunE: func(_ *cobra.Command, _ []string) error {
		if flagTokenUID == "" {
			return fmt.Errorf("--uid is required")
		}

		token, err := platformauth.BuildUnsignedToken(platformauth.DevClaims(flagTokenUID, flagTokenEmail, flagTokenName))
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	devTokenCmd.Flags().StringVar(&flagTokenUID, "uid", "", "principal id to embed in the token")
	devTokenCmd.Flags().StringVar(&flagTokenEmail, "email", "dev@example.com", "email claim")
	devTokenCmd.Flags().StringVar(&flagTokenName, "name", "", "display name claim")
	rootCmd.AddCommand(devTokenCmd)
}
