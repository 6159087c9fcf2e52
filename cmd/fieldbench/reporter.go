package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fieldbench/fieldbench/internal/models"
	"github.com/fieldbench/fieldbench/internal/orchestrator"
)

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

// consoleReporter prints progress events as they happen. Events arrive in
// completion order from concurrent workers, so output is serialized.
type consoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (r *consoleReporter) onEvent(event orchestrator.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.EventType {
	case orchestrator.EventRunStart:
		fmt.Fprintf(r.out, "Running %d pair(s)...\n", event.TotalPairs)

	case orchestrator.EventHandshake:
		fmt.Fprintf(r.out, "  %s: handshake ok\n", event.Participant)

	case orchestrator.EventTaskComplete:
		icon := statusIcon(event.Status, event.Passed)
		fmt.Fprintf(r.out, "  [%d/%d] %s %s → %s (%s, score %.2f)\n",
			event.PairNum, event.TotalPairs, icon,
			event.TaskID, event.Participant,
			formatDuration(time.Duration(event.DurationMs)*time.Millisecond),
			event.Score)

	case orchestrator.EventRunAborted:
		fmt.Fprintf(r.out, "Run aborted: %v\n", event.Details["error"])
	}
}

func statusIcon(status models.TaskStatus, passed bool) string {
	if status != models.StatusCompleted {
		return "⚠"
	}
	if passed {
		return "✓"
	}
	return "✗"
}
