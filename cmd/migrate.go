package cmd

import (
	"github.com/DomeLiquid/margin/store/gormstore"
	"github.com/spf13/cobra"
)

// command for migrating database
var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Aliases: []string{"setdb"},
	Short:   "migrate database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := provideDatabase()
		if err := gormstore.Migrate(db); err != nil {
			return err
		}
		logger.Info().Str("driver", cfg.DB.Driver).Msg("database migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
