package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Re-enable retries for permanently failed documents",
	Long: `Moves every permanently failed document back to pending with a zero
retry count, so the next ingestion pass picks it up again.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if err := ensureStore(); err != nil {
		return err
	}

	n, err := store.StateStore().ResetPermanentFailures(context.Background())
	if err != nil {
		return fmt.Errorf("resetting permanent failures: %w", err)
	}

	cmd.Printf("Reset %d document(s).\n", n)
	return nil
}
