package models

import (
	"fmt"
	"strings"
)

// Category is the field-operations domain a task belongs to.
type Category string

const (
	CategoryFactory   Category = "factory"
	CategoryWarehouse Category = "warehouse"
	CategoryRetail    Category = "retail"
)

// Categories lists the fixed benchmark categories in canonical order.
// "custom" is a selection target, not a category, so it is not listed here.
var Categories = []Category{CategoryFactory, CategoryWarehouse, CategoryRetail}

// Valid reports whether c is one of the fixed benchmark categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFactory, CategoryWarehouse, CategoryRetail:
		return true
	}
	return false
}

// FileKind classifies a task input file.
type FileKind string

const (
	FileKindVideo    FileKind = "video"
	FileKindImage    FileKind = "image"
	FileKindDocument FileKind = "document"
	FileKindText     FileKind = "text"
)

// KindForName derives the file kind from a file name extension, following
// the dataset layout (movie/image/document subdirectories).
func KindForName(name string) (FileKind, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".mp4"):
		return FileKindVideo, nil
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"), strings.HasSuffix(lower, ".png"):
		return FileKindImage, nil
	case strings.HasSuffix(lower, ".pdf"):
		return FileKindDocument, nil
	case strings.HasSuffix(lower, ".txt"):
		return FileKindText, nil
	}
	return "", fmt.Errorf("unsupported input file extension: %q", name)
}

// ScoringMethod selects the strategy used to grade a participant answer.
// The set is closed: methods are defined by the benchmark, not pluggable.
type ScoringMethod string

const (
	MethodExactMatch          ScoringMethod = "exact-match"
	MethodMultipleChoice      ScoringMethod = "multiple-choice"
	MethodNumericTolerance    ScoringMethod = "numeric-tolerance"
	MethodLocalizationOverlap ScoringMethod = "localization-overlap"
	MethodMustInclude         ScoringMethod = "must-include"
	MethodMustExclude         ScoringMethod = "must-exclude"
	MethodFuzzyMatch          ScoringMethod = "fuzzy-match"
)

// InputFile is one input referenced by a task. Payload is populated by the
// catalog when the file has been fetched from the dataset store; otherwise
// only the locator is carried and the file is sent by reference.
type InputFile struct {
	Kind    FileKind `json:"kind"`
	Name    string   `json:"name"`
	MIME    string   `json:"mime,omitempty"`
	Payload []byte   `json:"-"`
}

// ScoringSpec names the method for a task plus its method-specific
// parameters (tolerance, options, overlap threshold, ...).
type ScoringSpec struct {
	Method ScoringMethod  `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Task is one unit of evaluation. Tasks are immutable once loaded; the
// dispatcher and scorer hold references, never copies.
type Task struct {
	ID           string      `json:"id"`
	Category     Category    `json:"category"`
	Query        string      `json:"query"`
	Answer       string      `json:"answer"`
	Inputs       []InputFile `json:"inputs,omitempty"`
	OutputFormat string      `json:"output_format,omitempty"`
	Scoring      ScoringSpec `json:"scoring"`
}

// Goal renders the instruction text sent to a participant: the question,
// the list of attached input files, and the required output format.
func (t *Task) Goal() string {
	var b strings.Builder
	b.WriteString("# Question\n")
	b.WriteString(t.Query)
	b.WriteString("\n\n")

	if len(t.Inputs) > 0 {
		b.WriteString("# Input Data\n")
		for _, in := range t.Inputs {
			b.WriteString(in.Name)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	if t.OutputFormat != "" {
		b.WriteString("# Output Format\n")
		b.WriteString(t.OutputFormat)
		b.WriteByte('\n')
	}

	return b.String()
}

// NumericTail reduces a dotted task ID to its last three segments, e.g.
// "fieldbench.1.1.0001" -> "1.1.0001". Selection lists may name tasks either
// way; resolution always compares tails.
func NumericTail(id string) string {
	parts := strings.Split(id, ".")
	if len(parts) <= 3 {
		return id
	}
	return strings.Join(parts[len(parts)-3:], ".")
}
