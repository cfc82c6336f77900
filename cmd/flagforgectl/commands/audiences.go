package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flagforge/flagforge/internal/cli"
	"github.com/flagforge/flagforge/internal/client"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/spf13/cobra"
)

var (
	audienceEnvironmentID string
	audienceRulesJSON     string
)

var audiencesCmd = &cobra.Command{
	Use:     "audiences",
	Aliases: []string{"audience"},
	Short:   "Manage audiences",
}

func parseTargetingRules(raw string) ([]model.TargetingRule, error) {
	if raw == "" {
		return nil, nil
	}
	var rules []model.TargetingRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("invalid rules JSON: %w", err)
	}
	return rules, nil
}

var audiencesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new audience",
	Long: `Create a new audience scoped to one environment.

Example:
  flagforgectl audiences create beta-users --environment-id env-123 \
    --rules '[{"conditions":[{"attribute":"country","operator":"in","value":["US","CA"]}]}]' --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if audienceEnvironmentID == "" {
			return fmt.Errorf("--environment-id is required")
		}
		rules, err := parseTargetingRules(audienceRulesJSON)
		if err != nil {
			return err
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		aud, err := c.CreateAudience(context.Background(), audienceEnvironmentID, name, rules)
		if err != nil {
			return fmt.Errorf("failed to create audience: %w", err)
		}

		if !quiet {
			return cli.PrintAudience(&aud, cli.OutputFormat(format))
		}
		return nil
	},
}

var audiencesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audiences",
	Long: `List audiences, optionally filtered by environment.

Example:
  flagforgectl audiences list --environment-id env-123 --env prod`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		auds, err := c.ListAudiences(context.Background(), audienceEnvironmentID)
		if err != nil {
			return fmt.Errorf("failed to list audiences: %w", err)
		}

		if !quiet {
			if len(auds) == 0 {
				fmt.Println("No audiences found")
				return nil
			}
			return cli.PrintAudiences(auds, cli.OutputFormat(format))
		}
		return nil
	},
}

var audiencesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an audience",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		aud, err := c.GetAudience(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get audience: %w", err)
		}

		if !quiet {
			return cli.PrintAudience(&aud, cli.OutputFormat(format))
		}
		return nil
	},
}

var (
	audienceUpdateName string
)

var audiencesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update an audience's name and/or rules",
	Long: `Update an audience. Omitted flags leave the corresponding field
unchanged; pass --rules '[]' to clear rules explicitly.

Example:
  flagforgectl audiences update aud-123 --name "beta users v2" --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var namePtr *string
		if cmd.Flags().Changed("name") {
			namePtr = &audienceUpdateName
		}
		var rules []model.TargetingRule
		if cmd.Flags().Changed("rules") {
			parsed, err := parseTargetingRules(audienceRulesJSON)
			if err != nil {
				return err
			}
			if parsed == nil {
				parsed = []model.TargetingRule{}
			}
			rules = parsed
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		aud, err := c.UpdateAudience(context.Background(), args[0], namePtr, rules)
		if err != nil {
			return fmt.Errorf("failed to update audience: %w", err)
		}

		if !quiet {
			return cli.PrintAudience(&aud, cli.OutputFormat(format))
		}
		return nil
	},
}

var audiencesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an audience",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		if err := c.DeleteAudience(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete audience: %w", err)
		}

		if !quiet {
			fmt.Printf("Deleted audience '%s'\n", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(audiencesCmd)
	audiencesCmd.AddCommand(audiencesCreateCmd)
	audiencesCmd.AddCommand(audiencesListCmd)
	audiencesCmd.AddCommand(audiencesGetCmd)
	audiencesCmd.AddCommand(audiencesUpdateCmd)
	audiencesCmd.AddCommand(audiencesDeleteCmd)

	audiencesCmd.PersistentFlags().StringVar(&audienceEnvironmentID, "environment-id", "", "Environment ID")
	audiencesCreateCmd.Flags().StringVar(&audienceRulesJSON, "rules", "", "Targeting rules as a JSON array")
	audiencesUpdateCmd.Flags().StringVar(&audienceUpdateName, "name", "", "New audience name")
	audiencesUpdateCmd.Flags().StringVar(&audienceRulesJSON, "rules", "", "Targeting rules as a JSON array")
}
