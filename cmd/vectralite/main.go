// Command vectralite runs the hybrid vector search engine: a durable SQLite
// embedding store fronted by an in-memory centroid graph.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgPath string
	envPath string
)

func main() {
	root := &cobra.Command{
		Use:           "vectralite",
		Short:         "Hybrid approximate nearest neighbor search over SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// Missing .env is fine; the environment may already be set.
			if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envPath, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "vectralite.yaml", "configuration file")
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "environment file")

	root.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newSearchCmd(),
		newSimilarCmd(),
		newRebuildCmd(),
		newStatsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
