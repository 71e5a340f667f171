package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/config"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "localdnsd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command serves.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          appName,
		Short:        "Answer A queries for a local suffix from a hostname table",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML, TOML or JSON config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newCheckCmd(&configPath),
		newLookupCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}

// loadConfig loads configuration and configures global logging from it.
func loadConfig(path string) (*config.AppConfig, log.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		return nil, nil, fmt.Errorf("logging configuration error: %w", err)
	}
	return cfg, log.GetLogger(), nil
}
