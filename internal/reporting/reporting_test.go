package reporting

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbench/fieldbench/internal/models"
)

func result(taskID, participant string, status models.TaskStatus, score float64, passed bool) models.ScoredResult {
	return models.ScoredResult{
		Result: models.TaskResult{
			TaskID:      taskID,
			Participant: participant,
			Status:      status,
			DurationMs:  1500,
		},
		Method:   models.MethodExactMatch,
		Score:    score,
		Passed:   passed,
		Category: models.CategoryFactory,
	}
}

func sampleReport() *models.AssessmentReport {
	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	results := []models.ScoredResult{
		result("fb.1.1.0001", "alpha", models.StatusCompleted, 1, true),
		result("fb.1.1.0002", "alpha", models.StatusCompleted, 0, false),
		result("fb.1.1.0003", "alpha", models.StatusTimedOut, 0, false),
		result("fb.1.1.0001", "beta", models.StatusTransportError, 0, false),
		result("fb.1.1.0002", "beta", models.StatusDecodeError, 0, false),
		result("fb.1.1.0003", "beta", models.StatusCancelled, 0, false),
	}
	return &models.AssessmentReport{
		RunID:        "run-123",
		Target:       "all",
		Participants: []string{"alpha", "beta"},
		StartedAt:    started,
		FinishedAt:   finished,
		Results:      results,
		Summary:      models.Summarize(results, started, finished),
	}
}

func TestConvertToJUnit(t *testing.T) {
	suites := ConvertToJUnit(sampleReport())

	assert.Equal(t, 6, suites.Tests)
	assert.Equal(t, 1, suites.Failures, "one completed pair did not pass")
	assert.Equal(t, 4, suites.Errors, "every non-completed status is an error")

	require.Len(t, suites.TestSuites, 2)
	alpha := suites.TestSuites[0]
	assert.Equal(t, "alpha", alpha.Name)
	assert.Equal(t, 3, alpha.Tests)
	assert.Equal(t, 1, alpha.Failures)
	assert.Equal(t, 1, alpha.Errors)
	require.Len(t, alpha.Properties, 2)
	assert.Equal(t, "run-123", alpha.Properties[0].Value)

	// Suite order follows report.Participants, case order follows the report.
	passedCase := alpha.TestCases[0]
	assert.Nil(t, passedCase.Failure)
	assert.Nil(t, passedCase.Error)

	failedCase := alpha.TestCases[1]
	require.NotNil(t, failedCase.Failure)
	assert.Equal(t, "ScoringFailure", failedCase.Failure.Type)

	timedOut := alpha.TestCases[2]
	require.NotNil(t, timedOut.Error)
	assert.Equal(t, "Timeout", timedOut.Error.Type)

	beta := suites.TestSuites[1]
	assert.Equal(t, "TransportError", beta.TestCases[0].Error.Type)
	assert.Equal(t, "DecodeError", beta.TestCases[1].Error.Type)
	assert.Equal(t, "Cancelled", beta.TestCases[2].Error.Type)
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	report := sampleReport()

	jsonPath, err := WriteAll(report, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assessment-run-123.json"), jsonPath)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded models.AssessmentReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Len(t, decoded.Results, 6)

	xmlData, err := os.ReadFile(filepath.Join(dir, "assessment-run-123.xml"))
	require.NoError(t, err)
	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(xmlData, &suites))
	assert.Equal(t, 6, suites.Tests)
}

func TestInterpretScore(t *testing.T) {
	assert.Contains(t, InterpretScore(0.95), "Excellent")
	assert.Contains(t, InterpretScore(0.75), "Good")
	assert.Contains(t, InterpretScore(0.55), "Needs Work")
	assert.Contains(t, InterpretScore(0.10), "Poor")
}

func TestFormatSummaryReport(t *testing.T) {
	out := FormatSummaryReport(sampleReport())

	assert.Contains(t, out, "=== Assessment Summary ===")
	assert.Contains(t, out, "run-123")
	assert.Contains(t, out, "alpha, beta")
	assert.Contains(t, out, "6 (2 completed, 1 passed)")
	assert.Contains(t, out, "4 pair(s) produced no scorable answer")
	assert.Contains(t, out, "timed out:        1")
	assert.Contains(t, out, "transport errors: 1")
	assert.Contains(t, out, "By category:")
	assert.Contains(t, out, "By participant:")
}
