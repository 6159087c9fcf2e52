package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/fieldbench/fieldbench/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one participant's results.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one (task, participant) pair.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a scored answer that did not pass.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents a pair that never produced a scorable answer.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitSkipped marks a test as skipped.
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts an assessment report to JUnit XML form. Results
// group into one suite per participant, preserving the report's task order
// inside each suite.
func ConvertToJUnit(report *models.AssessmentReport) *JUnitTestSuites {
	durationSec := float64(report.Summary.DurationMs) / 1000.0

	byParticipant := make(map[string][]models.ScoredResult)
	for _, r := range report.Results {
		byParticipant[r.Result.Participant] = append(byParticipant[r.Result.Participant], r)
	}

	suites := &JUnitTestSuites{
		Tests: report.Summary.TotalPairs,
		Time:  durationSec,
	}

	for _, role := range report.Participants {
		results := byParticipant[role]
		suite := JUnitTestSuite{
			Name:      role,
			Tests:     len(results),
			Timestamp: report.StartedAt.Format(time.RFC3339),
			Properties: []JUnitProperty{
				{Name: "run_id", Value: report.RunID},
				{Name: "target", Value: report.Target},
			},
		}

		for _, r := range results {
			tc := convertResult(role, r)
			if tc.Error != nil {
				suite.Errors++
			} else if tc.Failure != nil {
				suite.Failures++
			}
			suite.Time += tc.Time
			suite.TestCases = append(suite.TestCases, tc)
		}

		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.TestSuites = append(suites.TestSuites, suite)
	}

	return suites
}

func convertResult(role string, r models.ScoredResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      r.Result.TaskID,
		Classname: role,
		Time:      float64(r.Result.DurationMs) / 1000.0,
	}

	switch r.Result.Status {
	case models.StatusCompleted:
		if !r.Passed {
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%s: score=%.2f", r.Result.TaskID, r.Score),
				Type:    "ScoringFailure",
				Body:    r.Explanation,
			}
		}
	default:
		msg := r.Result.ErrorMsg
		if msg == "" {
			msg = string(r.Result.Status)
		}
		tc.Error = &JUnitError{
			Message: msg,
			Type:    errorType(r.Result.Status),
		}
	}

	return tc
}

func errorType(status models.TaskStatus) string {
	switch status {
	case models.StatusTimedOut:
		return "Timeout"
	case models.StatusTransportError:
		return "TransportError"
	case models.StatusDecodeError:
		return "DecodeError"
	case models.StatusCancelled:
		return "Cancelled"
	default:
		return "ExecutionError"
	}
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(report *models.AssessmentReport, path string) error {
	suites := ConvertToJUnit(report)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
