// Package dispatch sends encoded task requests to participant endpoints and
// consumes their streamed responses under a wall-clock timeout. Every
// failure mode becomes a terminal TaskResult status; Execute never raises
// per-task errors to the caller.
package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldbench/fieldbench/internal/envelope"
	"github.com/fieldbench/fieldbench/internal/models"
	"github.com/fieldbench/fieldbench/internal/transport"
)

// StatusListener receives non-final status updates observed while a task is
// in flight, so callers can surface participant progress.
type StatusListener func(task *models.Task, participant models.ParticipantEndpoint, update *envelope.StatusUpdate)

// Dispatcher executes (task, participant) pairs over the transport.
type Dispatcher struct {
	client   transport.Streamer
	logger   *slog.Logger
	onStatus StatusListener
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStatusListener registers a progress listener.
func WithStatusListener(fn StatusListener) Option {
	return func(d *Dispatcher) {
		d.onStatus = fn
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// New creates a dispatcher on top of a transport client.
func New(client transport.Streamer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client: client,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Execute dispatches one task to one participant and blocks until a
// terminal result exists, never longer than timeout. There is no retry at
// this layer; retry policy belongs to the orchestrator.
func (d *Dispatcher) Execute(ctx context.Context, task *models.Task, participant models.ParticipantEndpoint, timeout time.Duration) models.TaskResult {
	start := time.Now()
	result := models.TaskResult{
		TaskID:      task.ID,
		Participant: participant.Role,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := envelope.EncodeTask(task)
	d.logger.Debug("dispatching task",
		"task", task.ID,
		"participant", participant.Role,
		"endpoint", participant.Address,
		"parts", len(msg.Parts))

	stream, err := d.client.OpenStream(ctx, participant.Address, msg)
	if err != nil {
		return d.finish(result, start, classify(err), err)
	}
	defer stream.Close() //nolint:errcheck

	decoder := envelope.NewStreamDecoder()
	var raw []string

	for {
		update, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) && decoder.Done() {
				break
			}
			result.Raw = strings.Join(raw, "\n")
			return d.finish(result, start, classify(err), err)
		}

		if text := update.Message.Text(); text != "" {
			raw = append(raw, text)
		}

		done, feedErr := decoder.Feed(update)
		if feedErr != nil {
			result.Raw = strings.Join(raw, "\n")
			return d.finish(result, start, models.StatusDecodeError, feedErr)
		}
		if done {
			break
		}
		if d.onStatus != nil {
			d.onStatus(task, participant, update)
		}
	}

	result.Raw = strings.Join(raw, "\n")

	answer, err := decoder.Answer()
	if err != nil {
		return d.finish(result, start, models.StatusDecodeError, err)
	}

	result.Status = models.StatusCompleted
	result.Answer = answer
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (d *Dispatcher) finish(result models.TaskResult, start time.Time, status models.TaskStatus, err error) models.TaskResult {
	result.Status = status
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.ErrorMsg = err.Error()
	}
	d.logger.Debug("dispatch finished without answer",
		"task", result.TaskID,
		"participant", result.Participant,
		"status", status,
		"error", result.ErrorMsg)
	return result
}

// classify maps a dispatch error to the terminal status recorded on the
// result. Deadline expiry and run-level cancellation are distinguished so
// reports can tell an unresponsive participant from an aborted run.
func classify(err error) models.TaskStatus {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.StatusTimedOut
	case errors.Is(err, context.Canceled):
		return models.StatusCancelled
	}

	var decodeErr *envelope.DecodeError
	if errors.As(err, &decodeErr) {
		return models.StatusDecodeError
	}
	if errors.Is(err, io.EOF) {
		// Stream closed before the terminal marker arrived.
		return models.StatusDecodeError
	}
	return models.StatusTransportError
}
