package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagforgectl",
	Short: "CLI tool for managing FlagForge environments, audiences and experiments",
	Long: `flagforgectl is a command-line tool for operating the FlagForge control plane.

It provides commands for creating and inspecting environments and
audiences, running experiments through their variant/allocation/status
lifecycle, and triggering config publication.

Examples:
  flagforgectl environments list --env prod
  flagforgectl experiments create checkout-button "Checkout button color" --env prod --environment-id env-123
  flagforgectl experiments status exp-123 running --env prod
  flagforgectl experiments publish exp-123 --env prod`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the control-plane API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Config environment (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Verbose output")
}
