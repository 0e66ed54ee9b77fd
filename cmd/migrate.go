package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealmate/internal/selector"
	"github.com/sells-group/dealmate/internal/store"
)

var migrateSeedPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and seed model configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		seed, err := resolveSeed(migrateSeedPath)
		if err != nil {
			return err
		}
		if err := seedModels(cmd.Context(), st, seed); err != nil {
			return err
		}

		zap.L().Info("migration complete",
			zap.String("driver", cfg.Store.Driver),
			zap.Int("profiles", len(seed.Profiles)),
			zap.Int("selections", len(seed.Selections)),
		)
		return nil
	},
}

func seedModels(ctx context.Context, st store.Store, seed *selector.Seed) error {
	for _, p := range seed.Profiles {
		if err := st.UpsertModelProfile(ctx, p); err != nil {
			return eris.Wrapf(err, "seed profile %s", p.ID)
		}
	}
	for _, sel := range seed.Selections {
		if err := st.UpsertModelSelection(ctx, sel); err != nil {
			return eris.Wrapf(err, "seed selection %s", sel.ID)
		}
	}
	return nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeedPath, "seed", "", "model configuration YAML (default from config, then built-in)")
	rootCmd.AddCommand(migrateCmd)
}
