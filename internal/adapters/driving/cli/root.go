// Package cli provides the ragsync command-line interface.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragsync/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragsync/internal/adapters/driven/library"
	"github.com/custodia-labs/ragsync/internal/adapters/driven/scraper"
	"github.com/custodia-labs/ragsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragsync/internal/adapters/driven/vector"
	"github.com/custodia-labs/ragsync/internal/chunker"
	"github.com/custodia-labs/ragsync/internal/core/ports/driving"
	"github.com/custodia-labs/ragsync/internal/core/services"
	"github.com/custodia-labs/ragsync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// Wired services, populated by ensureServices before commands run.
var (
	appConfig file.Config
	store     *sqlite.Store
	runner    driving.IngestionRunner
)

var rootCmd = &cobra.Command{
	Use:   "ragsync",
	Short: "Keep a vector index synchronised with a document library",
	Long: `ragsync ingests documents from a managed library and an external URL
list into a remote vector store, processing only what changed since the
last pass.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		cfg, err := file.Load(configPath)
		if err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.ragsync/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI. Wired services are torn down on the way out.
func Execute() error {
	defer func() {
		if store != nil {
			store.Close()
		}
	}()
	return rootCmd.Execute()
}

// ensureServices wires the full adapter stack from the loaded
// configuration. Commands that only read local state skip this and open
// just the store.
func ensureServices() error {
	if runner != nil {
		return nil
	}

	if err := ensureStore(); err != nil {
		return err
	}

	source, err := library.NewClient(library.Config{
		BaseURL:      appConfig.Library.BaseURL,
		TokenURL:     appConfig.Library.TokenURL,
		ClientID:     appConfig.Library.ClientID,
		ClientSecret: appConfig.Library.ClientSecret,
		Scopes:       appConfig.Library.Scopes,
		URLListName:  appConfig.Library.URLListName,
	})
	if err != nil {
		return fmt.Errorf("configuring library client: %w", err)
	}

	scraperClient := scraper.NewClient(scraper.Config{
		Timeout:   time.Duration(appConfig.Scraper.TimeoutSeconds) * time.Second,
		RateLimit: appConfig.Scraper.RateLimit,
		UserAgent: appConfig.Scraper.UserAgent,
	})

	normaliser, err := ai.NewNormaliser(ai.Config{
		BaseURL: appConfig.AI.BaseURL,
		Token:   appConfig.AI.Token,
		Model:   appConfig.AI.Model,
	})
	if err != nil {
		return fmt.Errorf("configuring normaliser: %w", err)
	}

	vectors, err := vector.NewClient(vector.Config{
		Endpoint:  appConfig.Vector.Endpoint,
		Token:     appConfig.Vector.Token,
		Namespace: appConfig.Vector.Namespace,
	})
	if err != nil {
		return fmt.Errorf("configuring vector client: %w", err)
	}

	chunk := chunker.New(normaliser,
		chunker.WithWindowSize(appConfig.Chunker.WindowSize),
		chunker.WithOverlap(appConfig.Chunker.Overlap),
		chunker.WithMinSectionLength(appConfig.Chunker.MinSectionLength),
	)

	runner = services.NewOrchestrator(
		store.LockStore(),
		store.StateStore(),
		source,
		scraperClient,
		chunk,
		vectors,
		services.OrchestratorConfig{
			LockKey:          appConfig.Ingestion.LockKey,
			LockTTL:          time.Duration(appConfig.Ingestion.LockTTLMinutes) * time.Minute,
			MaxRetries:       appConfig.Ingestion.MaxRetries,
			MinContentLength: appConfig.Ingestion.MinContentLength,
			Namespace:        appConfig.Vector.Namespace,
		},
	)
	return nil
}

func ensureStore() error {
	if store != nil {
		return nil
	}
	s, err := sqlite.NewStore(appConfig.Ingestion.DataDir)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	store = s
	return nil
}
