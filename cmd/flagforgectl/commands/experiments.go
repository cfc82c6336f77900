package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flagforge/flagforge/internal/cli"
	"github.com/flagforge/flagforge/internal/client"
	"github.com/flagforge/flagforge/internal/model"
	"github.com/spf13/cobra"
)

var (
	experimentEnvironmentID string
	experimentAudienceID    string
	experimentDescription   string
	experimentRulesJSON     string
)

var experimentsCmd = &cobra.Command{
	Use:     "experiments",
	Aliases: []string{"experiment", "exp"},
	Short:   "Manage experiments",
}

var experimentsCreateCmd = &cobra.Command{
	Use:   "create <key> <name>",
	Short: "Create a new experiment",
	Long: `Create a new experiment in DRAFT status.

Example:
  flagforgectl experiments create checkout-button "Checkout button color" \
    --environment-id env-123 --env prod`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, name := args[0], args[1]
		if experimentEnvironmentID == "" {
			return fmt.Errorf("--environment-id is required")
		}
		rules, err := parseTargetingRules(experimentRulesJSON)
		if err != nil {
			return err
		}
		var audienceID *string
		if experimentAudienceID != "" {
			audienceID = &experimentAudienceID
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		exp, err := c.CreateExperiment(context.Background(), experimentEnvironmentID, key, name, experimentDescription, audienceID, rules)
		if err != nil {
			return fmt.Errorf("failed to create experiment: %w", err)
		}

		if !quiet {
			return cli.PrintExperiment(&exp, cli.OutputFormat(format))
		}
		return nil
	},
}

var experimentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	Long: `List experiments, optionally filtered by environment and status.

Example:
  flagforgectl experiments list --environment-id env-123 --status running --env prod`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		exps, err := c.ListExperiments(context.Background(), experimentEnvironmentID, strings.ToUpper(experimentStatusFilter))
		if err != nil {
			return fmt.Errorf("failed to list experiments: %w", err)
		}

		if !quiet {
			if len(exps) == 0 {
				fmt.Println("No experiments found")
				return nil
			}
			return cli.PrintExperiments(exps, cli.OutputFormat(format))
		}
		return nil
	},
}

var experimentStatusFilter string

var experimentsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		exp, err := c.GetExperiment(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get experiment: %w", err)
		}

		if !quiet {
			return cli.PrintExperiment(&exp, cli.OutputFormat(format))
		}
		return nil
	},
}

var experimentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		if err := c.DeleteExperiment(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete experiment: %w", err)
		}

		if !quiet {
			fmt.Printf("Deleted experiment '%s'\n", args[0])
		}
		return nil
	},
}

var experimentsStatusCmd = &cobra.Command{
	Use:   "status <id> <draft|running|paused|archived>",
	Short: "Transition an experiment's status",
	Long: `Transition an experiment's status. Every accepted transition triggers
an implicit config publish for the experiment's environment.

Example:
  flagforgectl experiments status exp-123 running --env prod`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		exp, err := c.UpdateExperimentStatus(context.Background(), args[0], model.Status(strings.ToUpper(args[1])))
		if err != nil {
			return fmt.Errorf("failed to transition experiment status: %w", err)
		}

		if !quiet {
			return cli.PrintExperiment(&exp, cli.OutputFormat(format))
		}
		return nil
	},
}

var experimentsPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Trigger an explicit config publish for an experiment's environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		result, err := c.Publish(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("failed to publish: %w", err)
		}

		if !quiet {
			fmt.Printf("Published config version %d at %s\n", result.Version, result.PublishedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var (
	variantKey     string
	variantName    string
	variantPayload string
)

var experimentsAddVariantCmd = &cobra.Command{
	Use:   "add-variant <experiment-id>",
	Short: "Append a variant to an experiment",
	Long: `Append a variant to an experiment's variant set.

Example:
  flagforgectl experiments add-variant exp-123 --key treatment --name "Treatment" --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if variantKey == "" || variantName == "" {
			return fmt.Errorf("--key and --name are required")
		}
		var payload map[string]any
		if variantPayload != "" {
			if err := json.Unmarshal([]byte(variantPayload), &payload); err != nil {
				return fmt.Errorf("invalid payload JSON: %w", err)
			}
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		exp, err := c.CreateVariant(context.Background(), args[0], variantKey, variantName, payload)
		if err != nil {
			return fmt.Errorf("failed to add variant: %w", err)
		}

		if !quiet {
			return cli.PrintExperiment(&exp, cli.OutputFormat(format))
		}
		return nil
	},
}

var experimentsRemoveVariantCmd = &cobra.Command{
	Use:   "remove-variant <experiment-id> <variant-id>",
	Short: "Remove a variant from an experiment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		exp, err := c.DeleteVariant(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to remove variant: %w", err)
		}

		if !quiet {
			return cli.PrintExperiment(&exp, cli.OutputFormat(format))
		}
		return nil
	},
}

var allocationsJSON string

var experimentsSetAllocationsCmd = &cobra.Command{
	Use:   "set-allocations <experiment-id>",
	Short: "Replace an experiment's entire allocation set",
	Long: `Replace an experiment's entire allocation set in one call. Ranges
are over the [0, 9999] bucket space; uncovered buckets are a holdout.

Example:
  flagforgectl experiments set-allocations exp-123 --allocations \
    '[{"variantId":"v-1","rangeStart":0,"rangeEnd":4999},{"variantId":"v-2","rangeStart":5000,"rangeEnd":9999}]' --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if allocationsJSON == "" {
			return fmt.Errorf("--allocations is required")
		}
		var allocations []client.AllocationInput
		if err := json.Unmarshal([]byte(allocationsJSON), &allocations); err != nil {
			return fmt.Errorf("invalid allocations JSON: %w", err)
		}

		envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)

		exp, err := c.ReplaceAllocations(context.Background(), args[0], allocations)
		if err != nil {
			return fmt.Errorf("failed to set allocations: %w", err)
		}

		if !quiet {
			return cli.PrintExperiment(&exp, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(experimentsCmd)
	experimentsCmd.AddCommand(experimentsCreateCmd)
	experimentsCmd.AddCommand(experimentsListCmd)
	experimentsCmd.AddCommand(experimentsGetCmd)
	experimentsCmd.AddCommand(experimentsDeleteCmd)
	experimentsCmd.AddCommand(experimentsStatusCmd)
	experimentsCmd.AddCommand(experimentsPublishCmd)
	experimentsCmd.AddCommand(experimentsAddVariantCmd)
	experimentsCmd.AddCommand(experimentsRemoveVariantCmd)
	experimentsCmd.AddCommand(experimentsSetAllocationsCmd)

	experimentsCmd.PersistentFlags().StringVar(&experimentEnvironmentID, "environment-id", "", "Environment ID")
	experimentsCreateCmd.Flags().StringVar(&experimentAudienceID, "audience-id", "", "Audience ID to scope this experiment to")
	experimentsCreateCmd.Flags().StringVar(&experimentDescription, "description", "", "Experiment description")
	experimentsCreateCmd.Flags().StringVar(&experimentRulesJSON, "rules", "", "Targeting rules as a JSON array")
	experimentsListCmd.Flags().StringVar(&experimentStatusFilter, "status", "", "Filter by status (draft, running, paused, archived)")

	experimentsAddVariantCmd.Flags().StringVar(&variantKey, "key", "", "Variant key")
	experimentsAddVariantCmd.Flags().StringVar(&variantName, "name", "", "Variant name")
	experimentsAddVariantCmd.Flags().StringVar(&variantPayload, "payload", "", "Variant payload as a JSON object")

	experimentsSetAllocationsCmd.Flags().StringVar(&allocationsJSON, "allocations", "", "Allocations as a JSON array")
}
