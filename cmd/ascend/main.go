// Command ascend runs the Ascend API gateway and offers offline tooling for
// generating blueprints and preparing the database.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"ascend/internal/gateway/config"
	"ascend/internal/logger"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ascend",
	Short: "Ascend strategic blueprint service",
	Long: `ascend serves the blueprint API and exposes the generation engine on the
command line.

Configuration is read from the environment and an optional .env file, the
same way the server reads it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(serveCmd, generateCmd, fallbackCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}
