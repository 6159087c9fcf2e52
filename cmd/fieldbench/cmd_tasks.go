package main

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/fieldbench/fieldbench/internal/catalog"
	"github.com/fieldbench/fieldbench/internal/config"
)

func newTasksCommand() *cobra.Command {
	var (
		scenarioPath string
		target       string
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks an assessment run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tasksCommandE(cmd, scenarioPath, target)
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "Path to the scenario document (default: search for fieldbench.yaml)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Override the scenario's target")

	return cmd
}

func tasksCommandE(cmd *cobra.Command, scenarioPath, target string) error {
	cfg, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}
	if target != "" {
		cfg.Run.Target = target
	}

	cat, err := catalog.Load(cfg.TasksDir)
	if err != nil {
		return err
	}
	sel, err := config.LoadSelection(cfg.Selection)
	if err != nil {
		return err
	}
	tasks, err := cat.Resolve(sel, cfg.Run.Target)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	const (
		idWidth  = 28
		catWidth = 10
		smWidth  = 22
	)

	fmt.Fprintf(out, "%s %s %s %s\n",
		padRight("TASK", idWidth), padRight("CATEGORY", catWidth),
		padRight("SCORING", smWidth), "INPUTS")

	for _, t := range tasks {
		names := make([]string, 0, len(t.Inputs))
		for _, in := range t.Inputs {
			names = append(names, in.Name)
		}
		inputs := strings.Join(names, ", ")
		if inputs == "" {
			inputs = "-"
		}
		fmt.Fprintf(out, "%s %s %s %s\n",
			padRight(truncateName(t.ID, idWidth), idWidth),
			padRight(string(t.Category), catWidth),
			padRight(string(t.Scoring.Method), smWidth),
			inputs)
	}

	fmt.Fprintf(out, "\n%d task(s) for target %q\n", len(tasks), cfg.Run.Target)
	return nil
}

// truncateName shortens a name to maxLen runes, replacing the last rune
// with "…" if needed.
func truncateName(name string, maxLen int) string {
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen-1]) + "…"
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
