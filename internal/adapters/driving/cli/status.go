package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-document ingestion state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if err := ensureStore(); err != nil {
		return err
	}

	states, err := store.StateStore().List(context.Background())
	if err != nil {
		return fmt.Errorf("listing document states: %w", err)
	}

	if len(states) == 0 {
		cmd.Println("No documents tracked yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tSTATUS\tSECTIONS\tRETRIES\tLAST PROCESSED")
	for _, s := range states {
		name := s.FileName
		if name == "" {
			name = s.URL
		}
		lastProcessed := "never"
		if !s.LastProcessedAt.IsZero() {
			lastProcessed = s.LastProcessedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\n",
			name, s.Status, s.SectionsProcessed, s.SectionsTotal,
			s.RetryCount, lastProcessed)
	}
	return w.Flush()
}
