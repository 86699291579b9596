package main

import (
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/photosync/internal/config"
	"github.com/TheMichaelB/photosync/internal/index"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the index database",
	Long: `Init creates the item index. The database is copied from storage.db_template
when configured, otherwise it is created from the built-in schema.`,
	Example: `  photosync init
  photosync init --yes --write-config photosync.yaml`,
	RunE: runInit,
}

var (
	initYes         bool
	initWriteConfig string
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false,
		"Create the database without asking")
	initCmd.Flags().StringVar(&initWriteConfig, "write-config", "",
		"Also write an example config file to this path")
}

func runInit(cmd *cobra.Command, args []string) error {
	existed, err := index.Exists(cfg.Storage.DBPath)
	if err != nil {
		return err
	}

	if err := ensureIndex(initYes); err != nil {
		return err
	}

	if initWriteConfig != "" {
		if err := config.SaveExample(initWriteConfig); err != nil {
			return err
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": true,
			"path":    cfg.Storage.DBPath,
			"created": !existed,
		})
		return nil
	}

	if existed {
		printInfo("Database already exists at %s", cfg.Storage.DBPath)
	} else {
		printSuccess("Created database at %s", cfg.Storage.DBPath)
	}
	if initWriteConfig != "" {
		printInfo("Wrote example config to %s", initWriteConfig)
	}
	return nil
}
