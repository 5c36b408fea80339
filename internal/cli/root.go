// Package cli implements the arcana command line.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arcana-app/arcana/internal/daemon"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "arcana",
	Short: "Tarot readings with a credit ledger and reward engine",
	Long: `Arcana serves tarot readings paid for by free allowances or ledger credits,
and grants streak, golden card, challenge, and achievement rewards.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $ARCANA_HOME/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with secrets")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file, the dotenv file, and the environment.
func loadConfig() (daemon.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(daemon.Home(), "config.toml")
	}
	return daemon.Load(path, envFile)
}

// Main runs the CLI and exits the process.
func Main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
