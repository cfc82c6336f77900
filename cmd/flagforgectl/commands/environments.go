package commands

import (
	"context"
	"fmt"

	"github.com/flagforge/flagforge/internal/cli"
	"github.com/flagforge/flagforge/internal/client"
	"github.com/spf13/cobra"
)

var environmentsCmd = &cobra.Command{
	Use:     "environments",
	Aliases: []string{"env", "environment"},
	Short:   "Manage environments",
}

var environmentsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new environment",
	Long: `Create a new environment.

Example:
  flagforgectl environments create production --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		created, err := c.CreateEnvironment(context.Background(), name)
		if err != nil {
			return fmt.Errorf("failed to create environment: %w", err)
		}

		if !quiet {
			return cli.PrintEnvironment(&created, cli.OutputFormat(format))
		}
		return nil
	},
}

var environmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List environments",
	Long: `List all environments.

Example:
  flagforgectl environments list --env prod`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		envs, err := c.ListEnvironments(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list environments: %w", err)
		}

		if !quiet {
			if len(envs) == 0 {
				fmt.Println("No environments found")
				return nil
			}
			return cli.PrintEnvironments(envs, cli.OutputFormat(format))
		}
		return nil
	},
}

var environmentsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		got, err := c.GetEnvironment(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get environment: %w", err)
		}

		if !quiet {
			return cli.PrintEnvironment(&got, cli.OutputFormat(format))
		}
		return nil
	},
}

var environmentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		if err := c.DeleteEnvironment(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete environment: %w", err)
		}

		if !quiet {
			fmt.Printf("Deleted environment '%s'\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(environmentsCmd)
	environmentsCmd.AddCommand(environmentsCreateCmd)
	environmentsCmd.AddCommand(environmentsListCmd)
	environmentsCmd.AddCommand(environmentsGetCmd)
	environmentsCmd.AddCommand(environmentsDeleteCmd)
}
