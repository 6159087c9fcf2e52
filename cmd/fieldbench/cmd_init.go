package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/wizard"
)

const exampleTask = `{
  "task_id": "fb.demo.1.1.1",
  "category": "factory",
  "question": "How many assembly stations are idle in the attached report?",
  "answer": "3",
  "input_files": [],
  "output_format": "A single integer.",
  "scoring": {
    "method": "exact-match"
  }
}
`

func newInitCommand() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new assessment scenario",
		Long: `Initialize a scenario directory with a fieldbench.yaml document and a
tasks/ directory containing an example task definition.

Use --interactive to run a guided wizard that collects the participant
endpoint, target, and dataset settings.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided scenario wizard")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	scenarioPath := filepath.Join(dir, "fieldbench.yaml")
	if _, err := os.Stat(scenarioPath); err == nil {
		return fmt.Errorf("%s already exists", scenarioPath)
	}

	var cfg *config.Scenario
	if interactive {
		spec, err := wizard.RunScenarioWizard(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		cfg = spec.Scenario()
	} else {
		cfg = config.New()
		cfg.Participants = []config.Agent{
			{Role: "candidate", Endpoint: "localhost:7710"},
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling scenario: %w", err)
	}
	if err := os.WriteFile(scenarioPath, data, 0o644); err != nil {
		return err
	}

	tasksDir := filepath.Join(dir, config.DefaultTasksDir)
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return err
	}
	taskPath := filepath.Join(tasksDir, "fb.demo.1.1.1.json")
	if err := os.WriteFile(taskPath, []byte(exampleTask), 0o644); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", scenarioPath)
	fmt.Fprintf(out, "Created %s\n", taskPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Start your participant agent (or 'fieldbench serve --echo' to try it out)")
	fmt.Fprintln(out, "  2. fieldbench run")
	return nil
}
