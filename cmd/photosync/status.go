package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/photosync/internal/client"
	"github.com/TheMichaelB/photosync/internal/index"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index counts and sync markers",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := index.Open(cfg.Storage.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	status, err := client.ReadStatus(store)
	if err != nil {
		return err
	}

	authenticated := false
	var expiry time.Time
	if authService, err := client.NewAuth(cfg, logger); err == nil {
		authenticated, expiry = authService.Status()
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"index":         status,
			"authenticated": authenticated,
			"token_expiry":  expiry,
		})
		return nil
	}

	fmt.Printf("Index: %s\n", cfg.Storage.DBPath)
	fmt.Printf("   Pending:  %d\n", status.Counts["pending"])
	fmt.Printf("   Stored:   %d\n", status.Counts["stored"])
	fmt.Printf("   Conflict: %d\n", status.Counts["conflict"])
	fmt.Printf("   List complete: %t\n", status.ListComplete)

	if status.LastReconciliation != "" {
		fmt.Printf("   Last reconciliation: %s\n", status.LastReconciliation)
	} else {
		fmt.Printf("   Last reconciliation: never\n")
	}
	if status.ResumeMarker != 0 {
		printWarning("   Reconciliation will resume at item %d", status.ResumeMarker)
	}

	if authenticated {
		printSuccess("Authenticated (token expires %s)", expiry.Format(time.RFC3339))
	} else {
		printWarning("Not authenticated, run 'photosync login'")
	}
	return nil
}
