package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openmic-live/openmic/platform/go/gcp"
	"github.com/openmic-live/openmic/platform/go/logging"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

var (
	flagEnvKey   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "openmic",
	Short:         "Operational tooling for the party engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		_ = godotenv.Load()
	},
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvKey, "env-key", "", "tenant space the command operates on")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "minimum log severity")
}

func newLogger() (*zap.Logger, error) {
	return logging.NewLogger(logging.Config{Component: "admin-cli", Level: flagLogLevel})
}

func resolveSpace() (tenant.Space, error) {
	if flagEnvKey == "" {
		return tenant.Space{}, fmt.Errorf("--env-key is required")
	}
	return tenant.Resolve(flagEnvKey)
}

func firestoreClient(ctx context.Context) (*firestore.Client, error) {
	app, err := gcp.GetApp(ctx)
	if err != nil {
		return nil, err
	}
	return gcp.InitFirestore(ctx, app)
}
