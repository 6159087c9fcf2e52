// Package scenario manages the local agent processes a scenario document
// declares: spawn, readiness polling against the handshake, and teardown.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/transport"
)

const (
	// readyPollInterval is the delay between handshake probes while an
	// agent process starts up.
	readyPollInterval = 250 * time.Millisecond

	// DefaultReadyTimeout bounds how long Start waits for each spawned
	// agent to answer the handshake.
	DefaultReadyTimeout = 30 * time.Second

	// termGrace is how long teardown waits after SIGTERM before SIGKILL.
	termGrace = 5 * time.Second
)

// Runner spawns and tears down the agents a scenario declares locally.
// Agents without a command are assumed to be already running elsewhere and
// are only probed, never managed.
type Runner struct {
	client       *transport.Client
	logger       *slog.Logger
	readyTimeout time.Duration

	procs []*exec.Cmd
}

// NewRunner creates a runner. A zero readyTimeout uses DefaultReadyTimeout.
func NewRunner(client *transport.Client, logger *slog.Logger, readyTimeout time.Duration) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	return &Runner{
		client:       client,
		logger:       logger,
		readyTimeout: readyTimeout,
	}
}

// Start spawns every agent that declares a command and waits until each one
// answers the handshake. On any failure the already-started processes are
// torn down before the error returns.
func (r *Runner) Start(ctx context.Context, agents []config.Agent) error {
	for _, agent := range agents {
		if len(agent.Command) == 0 {
			continue
		}
		if err := r.spawn(agent); err != nil {
			r.Stop()
			return err
		}
	}

	for _, agent := range agents {
		if agent.Endpoint == "" {
			continue
		}
		if err := r.awaitReady(ctx, agent); err != nil {
			r.Stop()
			return err
		}
	}
	return nil
}

func (r *Runner) spawn(agent config.Agent) error {
	//nolint:gosec // agent commands are user-configured in the scenario document
	cmd := exec.Command(agent.Command[0], agent.Command[1:]...)
	cmd.Env = os.Environ()
	for k, v := range agent.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting agent %q: %w", agent.Role, err)
	}
	r.logger.Debug("agent started", "role", agent.Role, "pid", cmd.Process.Pid)
	r.procs = append(r.procs, cmd)
	return nil
}

// awaitReady polls the handshake until the agent answers or the readiness
// deadline passes.
func (r *Runner) awaitReady(ctx context.Context, agent config.Agent) error {
	deadline := time.Now().Add(r.readyTimeout)
	var lastErr error

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		probeCtx, cancel := context.WithTimeout(ctx, readyPollInterval*4)
		_, err := r.client.Handshake(probeCtx, agent.Endpoint)
		cancel()
		if err == nil {
			r.logger.Debug("agent ready", "role", agent.Role, "endpoint", agent.Endpoint)
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
	return fmt.Errorf("agent %q at %s not ready after %s: %w", agent.Role, agent.Endpoint, r.readyTimeout, lastErr)
}

// Stop tears down every spawned process: SIGTERM first, SIGKILL for
// anything still alive after the grace period. Safe to call more than once.
func (r *Runner) Stop() {
	for _, cmd := range r.procs {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			r.logger.Debug("signal failed", "pid", cmd.Process.Pid, "error", err)
		}
	}

	for _, cmd := range r.procs {
		if cmd.Process == nil {
			continue
		}
		done := make(chan struct{})
		go func(c *exec.Cmd) {
			c.Wait() //nolint:errcheck
			close(done)
		}(cmd)

		select {
		case <-done:
		case <-time.After(termGrace):
			r.logger.Debug("killing unresponsive agent", "pid", cmd.Process.Pid)
			cmd.Process.Kill() //nolint:errcheck
			<-done
		}
	}
	r.procs = nil
}
