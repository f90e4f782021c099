package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aphrc/proposal-review/internal/application"
)

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "reviewd",
		Short:         "Fellowship proposal review aggregation service",
		Long:          `Aggregates REDCap marking sheets into per-candidate score summaries, serves the review dashboard API and exports the results to Excel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing env file is fine; the real environment still applies.
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
			}
			return setupLogging(application.LogConfig{Level: opts.logLevel, Format: "text"})
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "config.yaml", "path to the YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level until the configuration is loaded")

	cmd.AddCommand(newServeCmd(opts), newAggregateCmd(), newExportCmd())
	return cmd
}

// setupLogging configures the standard logrus logger.
func setupLogging(cfg application.LogConfig) error {
	level := log.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = log.ParseLevel(cfg.Level); err != nil {
			return err
		}
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
