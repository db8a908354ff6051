package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garrettallen/cardboards/internal/database"
	"github.com/garrettallen/cardboards/pkg/migration"
)

// NewMigrateCommand applies or rolls back the block schema
func NewMigrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			logger := loggerFrom(cmd)
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}

			db, err := database.NewDB(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			direction := migration.Up
			if down {
				direction = migration.Down
			}
			if err := migration.RunMigrations(db, cfg.MigrationsPath, direction, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s complete\n", direction)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration")
	return cmd
}
