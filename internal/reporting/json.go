// Package reporting renders assessment reports as JSON and JUnit XML and
// produces the plain-language run summary printed after a run.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldbench/fieldbench/internal/models"
)

// WriteJSON writes the full report, results in report order, as indented
// JSON.
func WriteJSON(report *models.AssessmentReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

// WriteAll writes the JSON report and its JUnit sibling into dir, named
// after the run ID, and returns the JSON path.
func WriteAll(report *models.AssessmentReport, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	base := "assessment-" + report.RunID
	jsonPath := filepath.Join(dir, base+".json")
	if err := WriteJSON(report, jsonPath); err != nil {
		return "", err
	}
	if err := WriteJUnitXML(report, filepath.Join(dir, base+".xml")); err != nil {
		return "", err
	}
	return jsonPath, nil
}
