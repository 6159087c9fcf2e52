// Package scoring grades participant answers against task ground truth.
// Methods form a fixed, closed set selected by the task's scoring tag; a
// result that never completed scores zero before any strategy runs.
package scoring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"github.com/fieldbench/fieldbench/internal/models"
)

// Grade is the outcome of one strategy evaluation.
type Grade struct {
	Score       float64
	Passed      bool
	Explanation string
}

// strategy compares an expected answer with a participant answer. The
// question is available for judge-backed methods; pure strategies ignore it
// and the context.
type strategy interface {
	Score(ctx context.Context, expected, actual, question string) (Grade, error)
}

// Engine scores task results. It is safe for concurrent use.
type Engine struct {
	judge  Judge
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithJudge supplies the LLM judge backing the fuzzy-match method. Without
// one, fuzzy-match tasks score zero with an explanation.
func WithJudge(j Judge) Option {
	return func(e *Engine) {
		e.judge = j
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a scoring engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Score grades one task result. Non-completed results are fixed at 0/fail
// without invoking any strategy, so a non-response never earns partial
// credit.
func (e *Engine) Score(ctx context.Context, task *models.Task, result models.TaskResult) models.ScoredResult {
	scored := models.ScoredResult{
		Result:   result,
		Method:   task.Scoring.Method,
		Category: task.Category,
	}

	if result.Status != models.StatusCompleted {
		scored.Explanation = fmt.Sprintf("no completed response (status %s)", result.Status)
		return scored
	}

	strat, err := e.newStrategy(task.Scoring)
	if err != nil {
		scored.Explanation = err.Error()
		return scored
	}

	grade, err := strat.Score(ctx, task.Answer, result.Answer, task.Query)
	if err != nil {
		e.logger.Debug("scoring failed", "task", task.ID, "method", task.Scoring.Method, "error", err)
		scored.Explanation = fmt.Sprintf("scoring error: %v", err)
		return scored
	}

	scored.Score = grade.Score
	scored.Passed = grade.Passed
	scored.Explanation = grade.Explanation
	return scored
}

// newStrategy resolves the closed method set. Unknown tags are a task
// definition defect, not an extension point.
func (e *Engine) newStrategy(spec models.ScoringSpec) (strategy, error) {
	switch spec.Method {
	case models.MethodExactMatch:
		return exactMatch{}, nil

	case models.MethodMultipleChoice:
		var p struct {
			Options []string `mapstructure:"options"`
		}
		if err := mapstructure.Decode(spec.Params, &p); err != nil {
			return nil, fmt.Errorf("multiple-choice params: %w", err)
		}
		return multipleChoice{options: p.Options}, nil

	case models.MethodNumericTolerance:
		p := struct {
			Tolerance float64 `mapstructure:"tolerance"`
			Mode      string  `mapstructure:"mode"`
		}{Mode: "relative"}
		if err := mapstructure.Decode(spec.Params, &p); err != nil {
			return nil, fmt.Errorf("numeric-tolerance params: %w", err)
		}
		if p.Mode != "relative" && p.Mode != "absolute" {
			return nil, fmt.Errorf("numeric-tolerance mode must be relative or absolute, got %q", p.Mode)
		}
		return numericTolerance{tolerance: p.Tolerance, relative: p.Mode == "relative"}, nil

	case models.MethodLocalizationOverlap:
		p := struct {
			Threshold float64 `mapstructure:"threshold"`
		}{Threshold: 0.5}
		if err := mapstructure.Decode(spec.Params, &p); err != nil {
			return nil, fmt.Errorf("localization-overlap params: %w", err)
		}
		return localizationOverlap{threshold: p.Threshold}, nil

	case models.MethodMustInclude:
		return mustInclude{}, nil

	case models.MethodMustExclude:
		return mustExclude{}, nil

	case models.MethodFuzzyMatch:
		if e.judge == nil {
			return nil, fmt.Errorf("fuzzy-match requires a judge, none configured")
		}
		return fuzzyMatch{judge: e.judge}, nil

	default:
		return nil, fmt.Errorf("%q is not a valid scoring method", spec.Method)
	}
}
