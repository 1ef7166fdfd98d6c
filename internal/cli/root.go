// Package cli is the stockaudit command line: one-shot comparisons from the
// terminal plus the HTTP server.
package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/stockaudit/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stockaudit",
	Short: "Compare two stock reports and produce audit documents",
	Long: `stockaudit compares an older and a current stock/expiry report, lists the
inconsistencies and renders the audit, field sheet and final report PDFs
plus the share texts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default $CONFIG_PATH or config.yaml)")
	rootCmd.AddCommand(compareCmd, classifyCmd, serveCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file; a missing default file falls back to
// defaults plus environment so compare works without one.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Parse(nil)
	}
	return cfg, err
}
