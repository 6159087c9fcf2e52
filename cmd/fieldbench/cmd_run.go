package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldbench/fieldbench/internal/catalog"
	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/dataset"
	"github.com/fieldbench/fieldbench/internal/models"
	"github.com/fieldbench/fieldbench/internal/orchestrator"
	"github.com/fieldbench/fieldbench/internal/participant"
	"github.com/fieldbench/fieldbench/internal/reporting"
	"github.com/fieldbench/fieldbench/internal/scenario"
	"github.com/fieldbench/fieldbench/internal/scoring"
	"github.com/fieldbench/fieldbench/internal/transport"
)

const dialTimeout = 10 * time.Second

func newRunCommand() *cobra.Command {
	var (
		scenarioPath string
		target       string
		outputDir    string
		remoteAddr   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an assessment against the configured participants",
		Long: `Run dispatches every selected task to every participant, scores the
answers, and writes JSON and JUnit reports into the output directory.

Participants that declare a command in the scenario document are spawned
locally and torn down when the run ends. With --remote the run is executed
by a remote assessor (see 'fieldbench serve') instead of in-process.

Exit code 1 means the assessment ran but at least one (task, participant)
pair did not pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remoteAddr != "" {
				return runRemoteE(cmd, target, outputDir, remoteAddr)
			}
			return runCommandE(cmd, scenarioPath, target, outputDir)
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "Path to the scenario document (default: search for fieldbench.yaml)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "Override the scenario's target (all, factory, warehouse, retail, custom)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override the report output directory")
	cmd.Flags().StringVar(&remoteAddr, "remote", "", "Run via the assessor listening at this address instead of in-process")

	return cmd
}

// runRemoteE asks a remote assessor to execute the run, relaying its
// progress notifications, then writes the returned report locally.
func runRemoteE(cmd *cobra.Command, target, outputDir, remoteAddr string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	client := transport.NewClient(dialTimeout)

	card, err := client.Handshake(ctx, remoteAddr)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "connected to assessor %q (%s)\n", card.Name, card.Version)

	var report models.AssessmentReport
	err = client.Call(ctx, remoteAddr, transport.MethodAssessRun,
		participant.RunParams{Target: target}, &report,
		func(method string, params json.RawMessage) {
			if method != transport.MethodAssessEvent {
				return
			}
			var e participant.RunEvent
			if err := json.Unmarshal(params, &e); err != nil {
				return
			}
			switch e.Type {
			case string(orchestrator.EventRunStart):
				fmt.Fprintf(out, "Running %d pair(s)...\n", e.TotalPairs)
			case string(orchestrator.EventTaskComplete):
				fmt.Fprintf(out, "  [%d/%d] %s → %s (%s, score %.2f)\n",
					e.PairNum, e.TotalPairs, e.TaskID, e.Participant, e.Status, e.Score)
			}
		})
	if err != nil {
		return err
	}

	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}
	jsonPath, err := reporting.WriteAll(&report, outputDir)
	if err != nil {
		return fmt.Errorf("writing reports: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprint(out, reporting.FormatSummaryReport(&report))
	fmt.Fprintf(out, "\nReport written to %s\n", jsonPath)

	if report.Summary.Passed < report.Summary.TotalPairs {
		return &AssessmentFailureError{
			Message: fmt.Sprintf("%d of %d pairs did not pass",
				report.Summary.TotalPairs-report.Summary.Passed, report.Summary.TotalPairs),
		}
	}
	return nil
}

func runCommandE(cmd *cobra.Command, scenarioPath, target, outputDir string) error {
	cfg, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}
	if target != "" {
		cfg.Run.Target = target
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if outputDir != "" {
		cfg.Run.OutputDir = outputDir
	}

	cat, err := catalog.Load(cfg.TasksDir)
	if err != nil {
		return err
	}
	sel, err := config.LoadSelection(cfg.Selection)
	if err != nil {
		return err
	}

	source, err := dataset.NewSource(cfg.Dataset)
	if err != nil {
		return err
	}
	if source != nil {
		if err := source.Validate(); err != nil {
			return err
		}
	}
	cache := dataset.NewCache(cfg.Dataset.CacheDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := transport.NewClient(dialTimeout)

	runner := scenario.NewRunner(client, nil, 0)
	if err := runner.Start(ctx, cfg.Participants); err != nil {
		return err
	}
	defer runner.Stop()

	orch := orchestrator.New(cfg, cat, sel, client,
		orchestrator.WithDatasetSource(source, cache),
		orchestrator.WithScoringEngine(newScoringEngine(cfg)))

	reporter := newConsoleReporter(cmd.OutOrStdout())
	orch.OnProgress(reporter.onEvent)

	report, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	jsonPath, err := reporting.WriteAll(report, cfg.Run.OutputDir)
	if err != nil {
		return fmt.Errorf("writing reports: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), reporting.FormatSummaryReport(report))
	fmt.Fprintf(cmd.OutOrStdout(), "\nReport written to %s\n", jsonPath)

	if report.Summary.Passed < report.Summary.TotalPairs {
		return &AssessmentFailureError{
			Message: fmt.Sprintf("%d of %d pairs did not pass",
				report.Summary.TotalPairs-report.Summary.Passed, report.Summary.TotalPairs),
		}
	}
	return nil
}

// loadScenario loads the document at path, or searches upward from the
// working directory when no path is given.
func loadScenario(path string) (*config.Scenario, error) {
	if path == "" {
		found, err := config.Find(".")
		if err != nil {
			return nil, fmt.Errorf("no fieldbench.yaml found, run 'fieldbench init' or pass --scenario")
		}
		path = found
	}
	return config.Load(path)
}

// newScoringEngine wires the LLM judge in when credentials are available.
// Without them, fuzzy-match tasks score zero with an explanation instead of
// failing the run.
func newScoringEngine(cfg *config.Scenario) *scoring.Engine {
	keyEnv := cfg.Judge.KeyEnv
	if keyEnv == "" {
		keyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return scoring.NewEngine()
	}
	judge := scoring.NewOpenAIJudge(apiKey, cfg.Judge.BaseURL, cfg.Judge.Model)
	return scoring.NewEngine(scoring.WithJudge(judge))
}
