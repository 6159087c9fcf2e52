package participant

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fieldbench/fieldbench/internal/catalog"
	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/dataset"
	"github.com/fieldbench/fieldbench/internal/orchestrator"
	"github.com/fieldbench/fieldbench/internal/transport"
)

// RunParams are the parameters of an assessment/run request. An empty
// target falls back to the scenario's configured target.
type RunParams struct {
	Target string `json:"target,omitempty"`
}

// RunEvent is the assessment/event notification streamed while a remote
// run executes.
type RunEvent struct {
	Type        string  `json:"type"`
	TaskID      string  `json:"task_id,omitempty"`
	Participant string  `json:"participant,omitempty"`
	PairNum     int     `json:"pair_num,omitempty"`
	TotalPairs  int     `json:"total_pairs,omitempty"`
	Status      string  `json:"status,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Passed      bool    `json:"passed,omitempty"`
}

// Assessor serves assessment runs over the wire. Each assessment/run
// request executes a fresh orchestrator against the loaded catalog and
// streams progress back as notifications before the report returns as the
// response.
type Assessor struct {
	cfg       *config.Scenario
	catalog   *catalog.Catalog
	selection *config.Selection
	client    transport.Streamer
	source    dataset.Source
	cache     *dataset.Cache
	logger    *slog.Logger
}

// NewAssessor creates the assessor service.
func NewAssessor(cfg *config.Scenario, cat *catalog.Catalog, sel *config.Selection, client transport.Streamer, src dataset.Source, cache *dataset.Cache, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		cfg:       cfg,
		catalog:   cat,
		selection: sel,
		client:    client,
		source:    src,
		cache:     cache,
		logger:    logger,
	}
}

// Server builds the transport server for the assessor.
func (s *Assessor) Server() *transport.Server {
	srv := transport.NewServer(s.logger)
	srv.RegisterCard(transport.AgentCard{
		Name:        s.cfg.Assessor.Role,
		Description: "fieldbench assessor",
		Version:     Version,
		Streaming:   true,
	})
	srv.Register(transport.MethodAssessRun, s.handleRun)
	return srv
}

// Listen starts serving on addr.
func (s *Assessor) Listen(addr string) (*transport.Listener, error) {
	return transport.Listen(addr, s.Server())
}

func (s *Assessor) handleRun(ctx context.Context, params json.RawMessage, notify transport.Notifier) (any, *transport.Error) {
	var p RunParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, transport.ErrInvalidParams(err.Error())
		}
	}

	// Requests never mutate the shared scenario.
	cfg := *s.cfg
	if p.Target != "" {
		cfg.Run.Target = p.Target
	}

	orch := orchestrator.New(&cfg, s.catalog, s.selection, s.client,
		orchestrator.WithDatasetSource(s.source, s.cache),
		orchestrator.WithLogger(s.logger))

	orch.OnProgress(func(event orchestrator.ProgressEvent) {
		e := RunEvent{
			Type:        string(event.EventType),
			TaskID:      event.TaskID,
			Participant: event.Participant,
			PairNum:     event.PairNum,
			TotalPairs:  event.TotalPairs,
			Status:      string(event.Status),
			Score:       event.Score,
			Passed:      event.Passed,
		}
		if err := notify(transport.MethodAssessEvent, e); err != nil {
			s.logger.Debug("event notification failed", "error", err)
		}
	})

	report, err := orch.Run(ctx)
	if err != nil {
		return nil, transport.ErrRunAborted(err.Error())
	}
	return report, nil
}
