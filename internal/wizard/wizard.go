// Package wizard collects scenario settings interactively for the init
// command.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/fieldbench/fieldbench/internal/config"
)

// ScenarioSpec holds the fields collected by the wizard.
type ScenarioSpec struct {
	ParticipantRole     string
	ParticipantEndpoint string
	Target              string
	DatasetKind         string
	DatasetBaseURL      string
	TimeoutSeconds      int
}

// RunScenarioWizard runs an interactive huh form to collect scenario
// settings.
func RunScenarioWizard(in io.Reader, out io.Writer) (*ScenarioSpec, error) {
	var (
		role       = "candidate"
		endpoint   = "localhost:7710"
		target     = config.TargetAll
		kind       string
		baseURL    string
		timeoutRaw = strconv.Itoa(config.DefaultTimeoutSeconds)
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Participant role").
				Description("Name the agent under assessment").
				Value(&role).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("role is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Participant endpoint").
				Description("host:port the participant listens on").
				Value(&endpoint).
				Validate(func(s string) error {
					if !strings.Contains(s, ":") {
						return fmt.Errorf("endpoint must be host:port")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Target").
				Description("Which task set to run").
				Options(
					huh.NewOption("all", config.TargetAll),
					huh.NewOption("factory", "factory"),
					huh.NewOption("warehouse", "warehouse"),
					huh.NewOption("retail", "retail"),
				).
				Value(&target),
			huh.NewSelect[string]().
				Title("Dataset source").
				Description("Where task input files come from").
				Options(
					huh.NewOption("none (inline payloads only)", ""),
					huh.NewOption("http", "http"),
					huh.NewOption("azure", "azure"),
				).
				Value(&kind),
			huh.NewInput().
				Title("Dataset base URL").
				Description("Only used by the http source, leave empty otherwise").
				Value(&baseURL),
			huh.NewInput().
				Title("Task timeout (seconds)").
				Value(&timeoutRaw).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 {
						return fmt.Errorf("timeout must be a positive integer")
					}
					return nil
				}),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	timeout, _ := strconv.Atoi(strings.TrimSpace(timeoutRaw))
	return &ScenarioSpec{
		ParticipantRole:     strings.TrimSpace(role),
		ParticipantEndpoint: strings.TrimSpace(endpoint),
		Target:              target,
		DatasetKind:         kind,
		DatasetBaseURL:      strings.TrimSpace(baseURL),
		TimeoutSeconds:      timeout,
	}, nil
}

// Scenario converts the collected answers into a scenario document.
func (s *ScenarioSpec) Scenario() *config.Scenario {
	cfg := config.New()
	cfg.Participants = []config.Agent{
		{Role: s.ParticipantRole, Endpoint: s.ParticipantEndpoint},
	}
	cfg.Run.Target = s.Target
	cfg.Run.TimeoutSeconds = s.TimeoutSeconds
	cfg.Dataset.Kind = s.DatasetKind
	cfg.Dataset.BaseURL = s.DatasetBaseURL
	return cfg
}
