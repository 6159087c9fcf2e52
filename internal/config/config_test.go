package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalScenario = `
participants:
  - role: candidate
    endpoint: localhost:7710
`

func TestLoad_Defaults(t *testing.T) {
	path := writeScenario(t, minimalScenario)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultTarget, cfg.Run.Target)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.Run.TimeoutSeconds)
	assert.Equal(t, DefaultMaxWorkers, cfg.Run.MaxWorkers)
	assert.Equal(t, DefaultTokenEnv, cfg.Dataset.TokenEnv)
	// Relative paths resolve against the document directory.
	assert.Equal(t, filepath.Join(filepath.Dir(path), DefaultTasksDir), cfg.TasksDir)
}

func TestLoad_FullDocument(t *testing.T) {
	path := writeScenario(t, `
participants:
  - role: candidate
    endpoint: localhost:7710
    command: ["./agent", "--port", "7710"]
  - role: baseline
    endpoint: localhost:7711
tasks_dir: catalog/
dataset:
  kind: http
  base_url: https://example.com/data
run:
  target: warehouse
  timeout_seconds: 60
  max_workers: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Participants, 2)
	assert.Equal(t, []string{"./agent", "--port", "7710"}, cfg.Participants[0].Command)
	assert.Equal(t, "warehouse", cfg.Run.Target)
	assert.Equal(t, 8, cfg.Workers())

	eps := cfg.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "candidate", eps[0].Role)
	assert.Equal(t, "localhost:7710", eps[0].Address)
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"no participants", `run: {target: all}`, "at least one participant"},
		{"missing role", "participants:\n  - endpoint: localhost:1\n", "role is required"},
		{"missing endpoint", "participants:\n  - role: a\n", "endpoint is required"},
		{"duplicate role", "participants:\n  - role: a\n    endpoint: localhost:1\n  - role: a\n    endpoint: localhost:2\n", "duplicate participant role"},
		{"bad target", minimalScenario + "run:\n  target: everything\n", "target must be one of"},
		{"bad timeout", minimalScenario + "run:\n  timeout_seconds: -5\n", "timeout_seconds"},
		{"http without base_url", minimalScenario + "dataset:\n  kind: http\n", "base_url"},
		{"azure without account", minimalScenario + "dataset:\n  kind: azure\n", "account and container"},
		{"unknown dataset kind", minimalScenario + "dataset:\n  kind: ftp\n", "dataset kind"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScenario(t, tc.doc)
			_, err := Load(path)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("FIELDBENCH_TEST_TOKEN=sekret\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Dataset.TokenEnv = "FIELDBENCH_TEST_TOKEN"
	assert.Equal(t, "sekret", cfg.Dataset.Token())
}

func TestWorkers_ParallelDisabled(t *testing.T) {
	off := false
	cfg := New()
	cfg.Run.Parallel = &off
	cfg.Run.MaxWorkers = 8

	assert.Equal(t, 1, cfg.Workers())
}

func TestFind_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	want := filepath.Join(root, "fieldbench.yaml")
	require.NoError(t, os.WriteFile(want, []byte(minimalScenario), 0o644))

	got, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
