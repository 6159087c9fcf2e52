package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(task, participant string, status TaskStatus, score float64, cat Category) ScoredResult {
	return ScoredResult{
		Result: TaskResult{
			TaskID:      task,
			Participant: participant,
			Status:      status,
		},
		Score:    score,
		Passed:   score >= 1,
		Category: cat,
	}
}

func TestSummarize_CountsByStatus(t *testing.T) {
	started := time.Now()
	finished := started.Add(3 * time.Second)

	results := []ScoredResult{
		scored("t1", "a", StatusCompleted, 1, CategoryFactory),
		scored("t2", "a", StatusCompleted, 0, CategoryFactory),
		scored("t3", "a", StatusTimedOut, 0, CategoryWarehouse),
		scored("t4", "a", StatusTransportError, 0, CategoryWarehouse),
		scored("t5", "a", StatusDecodeError, 0, CategoryRetail),
		scored("t6", "a", StatusCancelled, 0, CategoryRetail),
	}

	s := Summarize(results, started, finished)

	assert.Equal(t, 6, s.TotalPairs)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 1, s.TimedOut)
	assert.Equal(t, 1, s.TransportErrors)
	assert.Equal(t, 1, s.DecodeErrors)
	assert.Equal(t, 1, s.Cancelled)
	assert.Equal(t, 1, s.Passed)
	assert.InDelta(t, 1.0/6.0, s.ScoreRate, 1e-9)
	assert.Equal(t, int64(3000), s.DurationMs)
	require.NotNil(t, s.CI95)
}

func TestSummarize_GroupOrderIsFirstSeen(t *testing.T) {
	now := time.Now()
	results := []ScoredResult{
		scored("t1", "beta", StatusCompleted, 1, CategoryWarehouse),
		scored("t2", "alpha", StatusCompleted, 0, CategoryFactory),
		scored("t3", "beta", StatusCompleted, 1, CategoryWarehouse),
	}

	s := Summarize(results, now, now)

	require.Len(t, s.PerCategory, 2)
	assert.Equal(t, "warehouse", s.PerCategory[0].Name)
	assert.Equal(t, 2, s.PerCategory[0].Pairs)
	assert.InDelta(t, 1.0, s.PerCategory[0].MeanScore, 1e-9)
	assert.Equal(t, "factory", s.PerCategory[1].Name)

	require.Len(t, s.PerParticipant, 2)
	assert.Equal(t, "beta", s.PerParticipant[0].Name)
	assert.Equal(t, "alpha", s.PerParticipant[1].Name)
}

func TestSummarize_Empty(t *testing.T) {
	now := time.Now()
	s := Summarize(nil, now, now)

	assert.Equal(t, 0, s.TotalPairs)
	assert.Zero(t, s.ScoreRate)
	assert.Nil(t, s.CI95)
	assert.Nil(t, s.PerCategory)
}
