package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/flagforge/flagforge/internal/model"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintEnvironments outputs a list of environments in the specified format.
func PrintEnvironments(envs []model.Environment, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]model.Environment{"environments": envs})
	case FormatYAML:
		return printYAML(envs)
	case FormatTable:
		return printEnvironmentsTable(envs)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintEnvironment outputs a single environment in the specified format.
func PrintEnvironment(env *model.Environment, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(env)
	case FormatYAML:
		return printYAML(env)
	case FormatTable:
		return printEnvironmentsTable([]model.Environment{*env})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintExperiments outputs a list of experiments in the specified format.
func PrintExperiments(experiments []model.Experiment, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]model.Experiment{"experiments": experiments})
	case FormatYAML:
		return printYAML(experiments)
	case FormatTable:
		return printExperimentsTable(experiments)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintExperiment outputs a single experiment in the specified format.
func PrintExperiment(exp *model.Experiment, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(exp)
	case FormatYAML:
		return printYAML(exp)
	case FormatTable:
		return printExperimentsTable([]model.Experiment{*exp})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintAudiences outputs a list of audiences in the specified format.
func PrintAudiences(auds []model.Audience, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]model.Audience{"audiences": auds})
	case FormatYAML:
		return printYAML(auds)
	case FormatTable:
		return printAudiencesTable(auds)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintAudience outputs a single audience in the specified format.
func PrintAudience(aud *model.Audience, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(aud)
	case FormatYAML:
		return printYAML(aud)
	case FormatTable:
		return printAudiencesTable([]model.Audience{*aud})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printEnvironmentsTable(envs []model.Environment) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Created At", "Updated At")

	for _, env := range envs {
		table.Append(
			env.ID,
			env.Name,
			env.CreatedAt.Format("2006-01-02 15:04"),
			env.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	return table.Render()
}

func printAudiencesTable(auds []model.Audience) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Environment", "Rules", "Updated At")

	for _, aud := range auds {
		table.Append(
			aud.ID,
			aud.Name,
			aud.EnvironmentID,
			fmt.Sprintf("%d", len(aud.Rules)),
			aud.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	return table.Render()
}

func printExperimentsTable(experiments []model.Experiment) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Key", "Name", "Status", "Variants", "Updated At")

	for _, exp := range experiments {
		name := exp.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}

		table.Append(
			exp.Key,
			name,
			string(exp.Status),
			fmt.Sprintf("%d", len(exp.Variants)),
			exp.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	return table.Render()
}
