// Package config loads and validates fieldbench scenario documents, the
// YAML files that name the assessor, the participants, and the run
// parameters for an assessment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fieldbench/fieldbench/internal/models"
)

// Default values for scenario configuration. These are the single source of
// truth; Load references them and no other code should duplicate them.
const (
	DefaultTarget         = "all"
	DefaultTimeoutSeconds = 300
	DefaultMaxWorkers     = 4
	DefaultTasksDir       = "tasks/"
	DefaultOutputDir      = "results/"
	DefaultCacheDir       = ".fieldbench-cache"
	DefaultTokenEnv       = "FIELDBENCH_DATASET_TOKEN"

	scenarioFileName = "fieldbench.yaml"
	envFileName      = ".env"
)

// ConfigurationError reports an invalid or unloadable scenario document. A
// run that hits one never dispatches any task.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Agent describes one agent in the scenario. A non-empty Command means the
// scenario runner spawns the process locally before connecting; otherwise
// the endpoint must already be listening.
type Agent struct {
	Role     string            `yaml:"role"`
	Endpoint string            `yaml:"endpoint"`
	Command  []string          `yaml:"command,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
}

// ParticipantEndpoint converts the agent to its dispatch form.
func (a Agent) ParticipantEndpoint() models.ParticipantEndpoint {
	return models.ParticipantEndpoint{Role: a.Role, Address: a.Endpoint}
}

// DatasetConfig selects where task input files are fetched from.
type DatasetConfig struct {
	// Kind is "http" or "azure"; empty disables remote fetching, in which
	// case every task input must carry an inline payload.
	Kind      string `yaml:"kind,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Account   string `yaml:"account,omitempty"`
	Container string `yaml:"container,omitempty"`
	TokenEnv  string `yaml:"token_env,omitempty"`
	CacheDir  string `yaml:"cache_dir,omitempty"`
}

// Token resolves the dataset bearer token from the environment.
func (d DatasetConfig) Token() string {
	env := d.TokenEnv
	if env == "" {
		env = DefaultTokenEnv
	}
	return os.Getenv(env)
}

// JudgeConfig configures the LLM judge used by fuzzy-match scoring.
type JudgeConfig struct {
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	KeyEnv  string `yaml:"key_env,omitempty"`
}

// RunSettings are the knobs for one assessment run.
type RunSettings struct {
	Target         string `yaml:"target,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	MaxWorkers     int    `yaml:"max_workers,omitempty"`
	Parallel       *bool  `yaml:"parallel,omitempty"`
	OutputDir      string `yaml:"output_dir,omitempty"`
}

// Scenario is the top-level document loaded from fieldbench.yaml.
type Scenario struct {
	Assessor     Agent         `yaml:"assessor,omitempty"`
	Participants []Agent       `yaml:"participants"`
	TasksDir     string        `yaml:"tasks_dir,omitempty"`
	Selection    string        `yaml:"selection,omitempty"`
	Dataset      DatasetConfig `yaml:"dataset,omitempty"`
	Judge        JudgeConfig   `yaml:"judge,omitempty"`
	Run          RunSettings   `yaml:"run,omitempty"`
}

// New returns a Scenario with all defaults populated.
func New() *Scenario {
	return &Scenario{
		TasksDir: DefaultTasksDir,
		Dataset: DatasetConfig{
			TokenEnv: DefaultTokenEnv,
			CacheDir: DefaultCacheDir,
		},
		Run: RunSettings{
			Target:         DefaultTarget,
			TimeoutSeconds: DefaultTimeoutSeconds,
			MaxWorkers:     DefaultMaxWorkers,
			OutputDir:      DefaultOutputDir,
		},
	}
}

// Load reads the scenario document at path, fills missing fields with
// defaults, loads a sibling .env file if one exists, and validates the
// result. Relative paths inside the document resolve against its directory.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("parsing: %w", err)}
	}
	applyDefaults(cfg)

	dir := filepath.Dir(path)
	if err := loadEnvFile(dir); err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	cfg.TasksDir = resolve(dir, cfg.TasksDir)
	if cfg.Selection != "" {
		cfg.Selection = resolve(dir, cfg.Selection)
	}
	if cfg.Dataset.CacheDir != "" {
		cfg.Dataset.CacheDir = resolve(dir, cfg.Dataset.CacheDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return cfg, nil
}

// Find walks up from startDir looking for fieldbench.yaml (max 10 levels).
// Returns os.ErrNotExist when no document is found.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", startDir, err)
	}

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, scenarioFileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// Validate checks the scenario for structural problems. It does not probe
// endpoints; reachability is the orchestrator's handshake concern.
func (s *Scenario) Validate() error {
	if len(s.Participants) == 0 {
		return errors.New("at least one participant is required")
	}

	seen := make(map[string]struct{}, len(s.Participants))
	for i, p := range s.Participants {
		if p.Role == "" {
			return fmt.Errorf("participant %d: role is required", i)
		}
		if p.Endpoint == "" {
			return fmt.Errorf("participant %q: endpoint is required", p.Role)
		}
		if _, dup := seen[p.Role]; dup {
			return fmt.Errorf("duplicate participant role %q", p.Role)
		}
		seen[p.Role] = struct{}{}
	}

	if !slices.Contains(validTargets, s.Run.Target) {
		return fmt.Errorf("target must be one of %v, got %q", validTargets, s.Run.Target)
	}
	if s.Run.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", s.Run.TimeoutSeconds)
	}
	if s.Run.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", s.Run.MaxWorkers)
	}

	switch s.Dataset.Kind {
	case "", "http", "azure":
	default:
		return fmt.Errorf("dataset kind must be http or azure, got %q", s.Dataset.Kind)
	}
	if s.Dataset.Kind == "http" && s.Dataset.BaseURL == "" {
		return errors.New("dataset base_url is required for the http source")
	}
	if s.Dataset.Kind == "azure" && (s.Dataset.Account == "" || s.Dataset.Container == "") {
		return errors.New("dataset account and container are required for the azure source")
	}
	return nil
}

// Endpoints returns the participant endpoints in declaration order.
func (s *Scenario) Endpoints() []models.ParticipantEndpoint {
	out := make([]models.ParticipantEndpoint, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, p.ParticipantEndpoint())
	}
	return out
}

// Workers returns the dispatch concurrency limit: one worker when parallel
// execution is disabled, max_workers otherwise.
func (s *Scenario) Workers() int {
	if s.Run.Parallel != nil && !*s.Run.Parallel {
		return 1
	}
	return s.Run.MaxWorkers
}

func applyDefaults(cfg *Scenario) {
	if cfg.TasksDir == "" {
		cfg.TasksDir = DefaultTasksDir
	}
	if cfg.Dataset.TokenEnv == "" {
		cfg.Dataset.TokenEnv = DefaultTokenEnv
	}
	if cfg.Dataset.CacheDir == "" {
		cfg.Dataset.CacheDir = DefaultCacheDir
	}
	if cfg.Run.Target == "" {
		cfg.Run.Target = DefaultTarget
	}
	if cfg.Run.TimeoutSeconds == 0 {
		cfg.Run.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Run.MaxWorkers == 0 {
		cfg.Run.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.Run.OutputDir == "" {
		cfg.Run.OutputDir = DefaultOutputDir
	}
}

// loadEnvFile loads a .env next to the scenario document, if present.
// Variables already set in the environment win.
func loadEnvFile(dir string) error {
	p := filepath.Join(dir, envFileName)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(p)
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
