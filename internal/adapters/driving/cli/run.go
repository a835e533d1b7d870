package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driving"
)

var (
	runForce    bool
	runDryRun   bool
	runDocIDs   []string
	runDaysBack int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one ingestion pass",
	Long: `Runs a full ingestion pass: fetch the library manifest and URL list,
detect changed documents, chunk and normalise them, and reconcile the
vector store. The result is printed as JSON.`,
	RunE: runIngestion,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "reprocess all documents regardless of change detection")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "report what would be processed without side effects")
	runCmd.Flags().StringSliceVar(&runDocIDs, "document-ids", nil, "restrict the pass to these document IDs")
	runCmd.Flags().IntVar(&runDaysBack, "days-back", 0, "only consider library files modified in the last N days")
	rootCmd.AddCommand(runCmd)
}

func runIngestion(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(); err != nil {
		return err
	}

	opts := driving.RunOptions{
		ForceReprocess: runForce,
		DryRun:         runDryRun,
		DocumentIDs:    runDocIDs,
	}
	if runDaysBack > 0 {
		opts.ModifiedSince = time.Now().UTC().AddDate(0, 0, -runDaysBack)
	}

	result := runner.Run(context.Background(), opts)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	cmd.Println(string(out))

	switch result.Status {
	case domain.RunLocked:
		return fmt.Errorf("another ingestion pass is already running")
	case domain.RunFailed:
		return fmt.Errorf("ingestion pass failed")
	}
	return nil
}
