package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/datastore"
)

// Command creates the command that creates or updates the database schema.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := datastore.Open(settings, datastore.Options{Debug: settings.Debug})
			if err != nil {
				return err
			}
			defer datastore.Close(db)

			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", settings.Database.Type)
			return nil
		},
	}
}
