package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fieldbench/fieldbench/internal/catalog"
	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/dataset"
	"github.com/fieldbench/fieldbench/internal/participant"
	"github.com/fieldbench/fieldbench/internal/transport"
)

func newServeCommand() *cobra.Command {
	var (
		scenarioPath string
		addr         string
		echo         bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assessor, or a reference participant with --echo",
		Long: `Serve starts the assessor agent. Remote callers trigger runs with the
assessment/run method and receive progress notifications while the run
executes.

With --echo it instead serves the built-in reference participant, which
answers every task with "N/A". Useful as a floor baseline and for
exercising a scenario end to end without a real agent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommandE(cmd, scenarioPath, addr, echo)
		},
	}

	cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "Path to the scenario document (default: search for fieldbench.yaml)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default: the scenario's assessor endpoint)")
	cmd.Flags().BoolVar(&echo, "echo", false, "Serve the reference participant instead of the assessor")

	return cmd
}

func serveCommandE(cmd *cobra.Command, scenarioPath, addr string, echo bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if echo {
		if addr == "" {
			addr = "localhost:7710"
		}
		agent := participant.NewAgent("reference", nil, nil)
		ln, err := agent.Listen(addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reference participant listening on %s\n", ln.Addr())
		return ln.Serve(ctx)
	}

	cfg, err := loadScenario(scenarioPath)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Assessor.Endpoint
	}
	if addr == "" {
		return fmt.Errorf("no listen address: set assessor.endpoint in the scenario or pass --addr")
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
	cache := dataset.NewCache(cfg.Dataset.CacheDir)

	assessor := participant.NewAssessor(cfg, cat, sel, transport.NewClient(dialTimeout), source, cache, nil)
	ln, err := assessor.Listen(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "assessor listening on %s (%d task(s) loaded)\n", ln.Addr(), len(cat.Tasks()))
	return ln.Serve(ctx)
}
