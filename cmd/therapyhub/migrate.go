package main

import (
	"github.com/spf13/cobra"

	"therapyhub/internal/repository/postgres"
)

func newMigrateCommand() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:     "migrate",
		Args:    cobra.NoArgs,
		Aliases: []string{"m"},
		Short:   "Apply the embedded SQL migrations",
		Long:    `Apply every up migration in order, or with --down roll every migration back in reverse order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			if down {
				files, err := postgres.MigrateDown(ctx, db)
				if err != nil {
					return err
				}
				a.logger.Info("migrations rolled back", "files", files)
				return nil
			}
			files, err := postgres.MigrateUp(ctx, db)
			if err != nil {
				return err
			}
			a.logger.Info("migrations applied", "files", files)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back instead of applying")
	return cmd
}
