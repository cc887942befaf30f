package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ossensor/internal/app"
	"ossensor/internal/enrich"
	"ossensor/internal/logging"
	"ossensor/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath  string
	storagePath string
}

var rootCmd = &cobra.Command{
	Use:   "ossensor",
	Short: "Patch-diff triage for paired build artifacts",
	Long: "ossensor ingests source trees, binaries and logs per build, diffs two\n" +
		"builds of a component, scores the change for vulnerability-research\n" +
		"interest and produces evidence-grounded triage reports.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&rootFlags.storagePath, "storage-path", "", "Override the store directory")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

// loadAppConfig resolves the effective configuration from flags and file.
func loadAppConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if rootFlags.storagePath != "" {
		cfg.Store.StoragePath = rootFlags.storagePath
	}
	return cfg, nil
}

// openOrchestrator builds an orchestrator for in-process commands. The
// returned cleanup closes the store.
func openOrchestrator() (*app.Orchestrator, func(), error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := logging.NewStdoutLogger("ossensor")
	st, err := store.NewSQLiteStore(logger, &cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	enricher, err := enrich.NewEnricher(cfg.Enrich, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	orch := app.NewOrchestrator(cfg, st, enricher, logger)
	cleanup := func() {
		orch.Close()
		st.Close()
	}
	return orch, cleanup, nil
}

func main() {
	enrich.RegisterDefaultProviders()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
