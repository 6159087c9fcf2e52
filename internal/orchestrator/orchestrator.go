// Package orchestrator drives an assessment run end to end: resolve the
// task list, verify every participant answers the handshake, dispatch each
// (task, participant) pair under a concurrency bound, score the results,
// and aggregate the report.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fieldbench/fieldbench/internal/catalog"
	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/dataset"
	"github.com/fieldbench/fieldbench/internal/dispatch"
	"github.com/fieldbench/fieldbench/internal/envelope"
	"github.com/fieldbench/fieldbench/internal/models"
	"github.com/fieldbench/fieldbench/internal/scoring"
	"github.com/fieldbench/fieldbench/internal/transport"
)

// State is the orchestrator lifecycle phase. Transitions only move forward;
// a finished orchestrator is never reused.
type State string

const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateRunning     State = "running"
	StateAggregating State = "aggregating"
	StateFinalized   State = "finalized"
	StateAborted     State = "aborted"
)

// EventType identifies a progress event.
type EventType string

const (
	EventRunStart     EventType = "run_start"
	EventHandshake    EventType = "handshake"
	EventTaskStart    EventType = "task_start"
	EventTaskStatus   EventType = "task_status"
	EventTaskComplete EventType = "task_complete"
	EventRunComplete  EventType = "run_complete"
	EventRunAborted   EventType = "run_aborted"
)

// ProgressEvent is one progress update. Task events arrive in completion
// order, which is unrelated to the report's catalog order.
type ProgressEvent struct {
	EventType   EventType
	TaskID      string
	Participant string
	PairNum     int
	TotalPairs  int
	Status      models.TaskStatus
	Score       float64
	Passed      bool
	DurationMs  int64
	Details     map[string]any
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// Orchestrator runs one assessment. Create with New, run once with Run.
type Orchestrator struct {
	cfg       *config.Scenario
	catalog   *catalog.Catalog
	selection *config.Selection
	client    transport.Streamer
	engine    *scoring.Engine
	source    dataset.Source
	cache     *dataset.Cache
	logger    *slog.Logger

	stateMu sync.Mutex
	state   State

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScoringEngine overrides the default scoring engine.
func WithScoringEngine(e *scoring.Engine) Option {
	return func(o *Orchestrator) {
		o.engine = e
	}
}

// WithDatasetSource supplies the input file source and cache.
func WithDatasetSource(src dataset.Source, cache *dataset.Cache) Option {
	return func(o *Orchestrator) {
		o.source = src
		o.cache = cache
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an orchestrator for one scenario.
func New(cfg *config.Scenario, cat *catalog.Catalog, sel *config.Selection, client transport.Streamer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		catalog:   cat,
		selection: sel,
		client:    client,
		engine:    scoring.NewEngine(),
		logger:    slog.Default(),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnProgress registers a progress listener.
func (o *Orchestrator) OnProgress(listener ProgressListener) {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.listeners = append(o.listeners, listener)
}

func (o *Orchestrator) notifyProgress(event ProgressEvent) {
	o.progressMu.Lock()
	listeners := make([]ProgressListener, len(o.listeners))
	copy(listeners, o.listeners)
	o.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

func (o *Orchestrator) abort(err error) error {
	o.setState(StateAborted)
	o.notifyProgress(ProgressEvent{
		EventType: EventRunAborted,
		Details:   map[string]any{"error": err.Error()},
	})
	return err
}

// Run executes the assessment and returns the report. It can be called
// once; the report's Results hold exactly one entry per (task, participant)
// pair in catalog order, whatever order the pairs finished in.
func (o *Orchestrator) Run(ctx context.Context) (*models.AssessmentReport, error) {
	o.stateMu.Lock()
	if o.state != StateIdle {
		o.stateMu.Unlock()
		return nil, fmt.Errorf("orchestrator already ran (state %s)", o.state)
	}
	o.state = StateResolving
	o.stateMu.Unlock()

	started := time.Now().UTC()

	tasks, err := o.catalog.Resolve(o.selection, o.cfg.Run.Target)
	if err != nil {
		return nil, o.abort(err)
	}

	// An unreachable required input is a catalog defect: the task cannot be
	// dispatched faithfully, so the run aborts before any pair executes.
	for _, task := range tasks {
		if err := dataset.Attach(ctx, o.source, o.cache, task); err != nil {
			return nil, o.abort(&catalog.CatalogError{Msg: err.Error()})
		}
	}

	participants := o.cfg.Endpoints()
	if len(participants) == 0 {
		return nil, o.abort(&config.ConfigurationError{
			Err: fmt.Errorf("scenario declares no participants"),
		})
	}
	if err := o.handshakeAll(ctx, participants); err != nil {
		return nil, o.abort(err)
	}

	o.setState(StateRunning)

	totalPairs := len(tasks) * len(participants)
	o.notifyProgress(ProgressEvent{
		EventType:  EventRunStart,
		TotalPairs: totalPairs,
		Details: map[string]any{
			"tasks":        len(tasks),
			"participants": len(participants),
			"target":       o.cfg.Run.Target,
		},
	})

	results := o.dispatchAll(ctx, tasks, participants)

	o.setState(StateAggregating)

	finished := time.Now().UTC()
	report := &models.AssessmentReport{
		RunID:        uuid.NewString(),
		Target:       o.cfg.Run.Target,
		Participants: roles(participants),
		StartedAt:    started,
		FinishedAt:   finished,
		Results:      results,
		Summary:      models.Summarize(results, started, finished),
	}

	if ctx.Err() != nil {
		o.setState(StateAborted)
		o.notifyProgress(ProgressEvent{
			EventType: EventRunAborted,
			Details:   map[string]any{"error": ctx.Err().Error()},
		})
		return report, ctx.Err()
	}

	o.setState(StateFinalized)
	o.notifyProgress(ProgressEvent{
		EventType:  EventRunComplete,
		TotalPairs: totalPairs,
		DurationMs: finished.Sub(started).Milliseconds(),
	})
	return report, nil
}

// handshakeAll probes every participant before anything is dispatched. One
// unreachable participant fails the whole run; partial assessments are
// worse than none.
func (o *Orchestrator) handshakeAll(ctx context.Context, participants []models.ParticipantEndpoint) error {
	for _, p := range participants {
		card, err := o.client.Handshake(ctx, p.Address)
		if err != nil {
			return &config.ConfigurationError{
				Err: fmt.Errorf("participant %q at %s failed handshake: %w", p.Role, p.Address, err),
			}
		}
		if !card.Streaming {
			return &config.ConfigurationError{
				Err: fmt.Errorf("participant %q does not support streaming responses", p.Role),
			}
		}
		o.logger.Debug("handshake ok", "participant", p.Role, "agent", card.Name, "version", card.Version)
		o.notifyProgress(ProgressEvent{
			EventType:   EventHandshake,
			Participant: p.Role,
			Details:     map[string]any{"agent": card.Name, "version": card.Version},
		})
	}
	return nil
}

// dispatchAll runs every (task, participant) pair under the worker limit.
// Each pair writes its own result slot, so the returned slice is in catalog
// order no matter how the goroutines interleave.
func (o *Orchestrator) dispatchAll(ctx context.Context, tasks []*models.Task, participants []models.ParticipantEndpoint) []models.ScoredResult {
	totalPairs := len(tasks) * len(participants)
	timeout := time.Duration(o.cfg.Run.TimeoutSeconds) * time.Second

	dispatcher := dispatch.New(o.client,
		dispatch.WithLogger(o.logger),
		dispatch.WithStatusListener(func(task *models.Task, p models.ParticipantEndpoint, update *envelope.StatusUpdate) {
			o.notifyProgress(ProgressEvent{
				EventType:   EventTaskStatus,
				TaskID:      task.ID,
				Participant: p.Role,
				Details:     map[string]any{"state": string(update.State)},
			})
		}))

	results := make([]models.ScoredResult, totalPairs)
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers())

	for ti, task := range tasks {
		for pi, p := range participants {
			idx := ti*len(participants) + pi
			g.Go(func() error {
				o.notifyProgress(ProgressEvent{
					EventType:   EventTaskStart,
					TaskID:      task.ID,
					Participant: p.Role,
					TotalPairs:  totalPairs,
				})

				result := dispatcher.Execute(gctx, task, p, timeout)
				scored := o.engine.Score(gctx, task, result)
				results[idx] = scored

				o.notifyProgress(ProgressEvent{
					EventType:   EventTaskComplete,
					TaskID:      task.ID,
					Participant: p.Role,
					PairNum:     int(completed.Add(1)),
					TotalPairs:  totalPairs,
					Status:      scored.Result.Status,
					Score:       scored.Score,
					Passed:      scored.Passed,
					DurationMs:  scored.Result.DurationMs,
				})
				// Per-pair failures are terminal statuses, never errors; one
				// bad pair must not cancel the group.
				return nil
			})
		}
	}

	g.Wait() //nolint:errcheck
	return results
}

func roles(participants []models.ParticipantEndpoint) []string {
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		out = append(out, p.Role)
	}
	return out
}
