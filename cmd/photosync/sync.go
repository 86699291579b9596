package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/photosync/internal/client"
	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/services/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the photo library to the local mirror",
	Long: `Sync indexes new remote items, downloads pending ones and, once the
reconciliation cooldown has elapsed, purges items deleted upstream.

The first run walks the whole library. Later runs stop at the first item
already in the index.`,
	Example: `  photosync sync
  photosync sync --skip-reconcile
  photosync sync --force-reconcile --json`,
	RunE: runSync,
}

var (
	syncSkipDownload   bool
	syncSkipReconcile  bool
	syncForceReconcile bool
	syncYes            bool
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncSkipDownload, "skip-download", false,
		"Only update the index")
	syncCmd.Flags().BoolVar(&syncSkipReconcile, "skip-reconcile", false,
		"Do not check for items deleted upstream")
	syncCmd.Flags().BoolVar(&syncForceReconcile, "force-reconcile", false,
		"Reconcile even if the cooldown has not elapsed")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false,
		"Create the database without asking if it is missing")
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := ensureIndex(syncYes); err != nil {
		return err
	}

	c, err := client.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = events.WithRunID(events.WithLogger(ctx, logger))

	report, err := c.Run(ctx, sync.RunOptions{
		SkipDownload:   syncSkipDownload,
		SkipReconcile:  syncSkipReconcile,
		ForceReconcile: syncForceReconcile,
	})

	if errors.Is(err, context.Canceled) && !jsonOutput {
		printWarning("\nSync interrupted")
	}

	if jsonOutput {
		result := map[string]interface{}{
			"success": err == nil,
			"report":  report,
		}
		if err != nil {
			result["error"] = err.Error()
		}
		printJSON(result)
		return err
	}

	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}

	printSuccess("\nSync completed successfully")
	return nil
}

func printReport(r *sync.Report) {
	mode := "full"
	if r.CatchUp {
		mode = "catch-up"
	}

	fmt.Printf("\nSync Summary (%s):\n", r.RunID)
	fmt.Printf("   Listing (%s): %d pages, %d new, %d known, %d skipped\n",
		mode, r.Pages, r.Inserted, r.Duplicates, r.Skipped)
	fmt.Printf("   Downloads: %d stored (%s), %d conflicts, %d not ready, %d removed upstream\n",
		r.Stored, formatBytes(r.Bytes), r.Conflicts, r.NotReady, r.RemovedUpstream)
	if r.Transient > 0 || r.LocalIO > 0 {
		fmt.Printf("   Failed, retried next run: %d fetch, %d local I/O\n", r.Transient, r.LocalIO)
	}
	if r.ReconcileRan {
		fmt.Printf("   Reconciliation: %d checked, %d purged\n", r.Reconciled, r.Purged)
	} else {
		fmt.Printf("   Reconciliation: not due\n")
	}
	fmt.Printf("   Duration: %s\n", r.Duration.Round(time.Second))
}
