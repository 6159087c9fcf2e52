package models

import (
	"time"

	"github.com/fieldbench/fieldbench/internal/stats"
)

// GroupScore aggregates pair scores for one grouping key (a category or a
// participant role).
type GroupScore struct {
	Name      string  `json:"name"`
	Pairs     int     `json:"pairs"`
	MeanScore float64 `json:"mean_score"`
}

// ReportSummary is the run-level digest computed when a report is finalized.
type ReportSummary struct {
	TotalPairs      int                       `json:"total_pairs"`
	Completed       int                       `json:"completed"`
	TimedOut        int                       `json:"timed_out"`
	TransportErrors int                       `json:"transport_errors"`
	DecodeErrors    int                       `json:"decode_errors"`
	Cancelled       int                       `json:"cancelled"`
	Passed          int                       `json:"passed"`
	TotalScore      float64                   `json:"total_score"`
	ScoreRate       float64                   `json:"score_rate"`
	StdDev          float64                   `json:"std_dev"`
	CI95            *stats.ConfidenceInterval `json:"ci_95,omitempty"`
	PerCategory     []GroupScore              `json:"per_category,omitempty"`
	PerParticipant  []GroupScore              `json:"per_participant,omitempty"`
	DurationMs      int64                     `json:"duration_ms"`
}

// AssessmentReport is the product of one run. Results preserve task-catalog
// declaration order (participants inner, tasks outer) regardless of
// completion order; every (task, participant) pair has exactly one entry.
type AssessmentReport struct {
	RunID        string         `json:"run_id"`
	Target       string         `json:"target"`
	Participants []string       `json:"participants"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Results      []ScoredResult `json:"results"`
	Summary      ReportSummary  `json:"summary"`
}

// Summarize computes the run digest from results. Called once by the
// orchestrator when the report is frozen.
func Summarize(results []ScoredResult, started, finished time.Time) ReportSummary {
	s := ReportSummary{
		TotalPairs: len(results),
		DurationMs: finished.Sub(started).Milliseconds(),
	}

	scores := make([]float64, 0, len(results))
	catAcc := newGroupAccumulator()
	partAcc := newGroupAccumulator()

	for _, r := range results {
		switch r.Result.Status {
		case StatusCompleted:
			s.Completed++
		case StatusTimedOut:
			s.TimedOut++
		case StatusTransportError:
			s.TransportErrors++
		case StatusDecodeError:
			s.DecodeErrors++
		case StatusCancelled:
			s.Cancelled++
		}
		if r.Passed {
			s.Passed++
		}
		s.TotalScore += r.Score
		scores = append(scores, r.Score)
		catAcc.add(string(r.Category), r.Score)
		partAcc.add(r.Result.Participant, r.Score)
	}

	if s.TotalPairs > 0 {
		s.ScoreRate = s.TotalScore / float64(s.TotalPairs)
	}
	s.StdDev = stats.StdDev(scores)
	if len(scores) >= 2 {
		ci := stats.BootstrapCI(scores, 0.95)
		s.CI95 = &ci
	}
	s.PerCategory = catAcc.groups()
	s.PerParticipant = partAcc.groups()
	return s
}

// groupAccumulator folds scores per key, preserving first-seen order so
// summaries are stable across runs.
type groupAccumulator struct {
	order []string
	sums  map[string]float64
	count map[string]int
}

func newGroupAccumulator() *groupAccumulator {
	return &groupAccumulator{
		sums:  make(map[string]float64),
		count: make(map[string]int),
	}
}

func (g *groupAccumulator) add(key string, score float64) {
	if key == "" {
		return
	}
	if _, ok := g.count[key]; !ok {
		g.order = append(g.order, key)
	}
	g.sums[key] += score
	g.count[key]++
}

func (g *groupAccumulator) groups() []GroupScore {
	if len(g.order) == 0 {
		return nil
	}
	out := make([]GroupScore, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, GroupScore{
			Name:      key,
			Pairs:     g.count[key],
			MeanScore: g.sums[key] / float64(g.count[key]),
		})
	}
	return out
}
