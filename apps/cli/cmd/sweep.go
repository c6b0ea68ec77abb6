package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	partyrepo "github.com/openmic-live/openmic/domains/parties/be/repo"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/session"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

var flagMaxAge time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "End parties that have been active longer than the maximum age",
	Long: `Finds parties still marked active that were created before the cutoff
and ends them. Meant to run on a schedule so abandoned parties do not
linger forever.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		space, err := resolveSpace()
		if err != nil {
			return err
		}

		ctx := tenant.WithSpace(cmd.Context(), space)
		client, err := firestoreClient(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		parties := partysvc.New(partyrepo.NewStoreRepository(persistence.NewFirestoreStore(client)))

		cutoff := time.Now().Add(-flagMaxAge)
		stale, err := parties.ListStaleActive(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("sweep starting",
			zap.String("tenant", space.ID),
			zap.Time("cutoff", cutoff),
			zap.Int("candidates", len(stale)))

		sess := session.System("sweep")
		ended := 0
		for _, party := range stale {
			if _, err := parties.End(ctx, sess, party.ID); err != nil {
				// One stuck party must not block the rest of the sweep.
				logger.Error("sweep could not end party",
					zap.String("partyId", party.ID),
					zap.Error(err))
				continue
			}
			ended++
			logger.Info("party ended by sweep",
				zap.String("partyId", party.ID),
				zap.String("code", party.Code),
				zap.Time("createdAt", party.CreatedAt))
		}

		logger.Info("sweep finished", zap.Int("ended", ended), zap.Int("failed", len(stale)-ended))
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&flagMaxAge, "max-age", 24*time.Hour, "how long a party may stay active")
	rootCmd.AddCommand(sweepCmd)
}
