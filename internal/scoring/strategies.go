package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// cleanAnswer strips surrounding whitespace and one layer of matching quotes,
// then lowercases. Comparisons are insensitive to the cosmetic differences
// agents introduce when quoting their answers.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return strings.ToLower(s)
}

type exactMatch struct{}

func (exactMatch) Score(_ context.Context, expected, actual, _ string) (Grade, error) {
	if cleanAnswer(expected) == cleanAnswer(actual) {
		return Grade{Score: 1, Passed: true}, nil
	}
	return Grade{Explanation: fmt.Sprintf("expected %q, got %q", expected, actual)}, nil
}

// letterPattern matches a standalone choice letter, optionally wrapped in the
// usual decorations agents produce ("B", "(b)", "B.", "answer: B").
var letterPattern = regexp.MustCompile(`(?i)\b([a-z])[).:]?(\s|$)`)

type multipleChoice struct {
	options []string
}

func (m multipleChoice) Score(_ context.Context, expected, actual, _ string) (Grade, error) {
	want := cleanAnswer(expected)
	got := cleanAnswer(actual)

	if got == want {
		return Grade{Score: 1, Passed: true}, nil
	}

	// Free-text answers are mapped back to an option letter before
	// comparison: first by option text containment, then by the first
	// standalone letter in the answer.
	if letter, ok := m.normalize(got); ok {
		if letter == want {
			return Grade{Score: 1, Passed: true}, nil
		}
		return Grade{Explanation: fmt.Sprintf("expected option %q, got %q", want, letter)}, nil
	}
	return Grade{Explanation: fmt.Sprintf("could not map answer %q to an option", actual)}, nil
}

func (m multipleChoice) normalize(answer string) (string, bool) {
	for i, opt := range m.options {
		if opt != "" && strings.Contains(answer, cleanAnswer(opt)) {
			return string(rune('a' + i)), true
		}
	}
	if match := letterPattern.FindStringSubmatch(answer); match != nil {
		return strings.ToLower(match[1]), true
	}
	return "", false
}

var numberPattern = regexp.MustCompile(`-?\d+(?:,\d{3})*(?:\.\d+)?`)

type numericTolerance struct {
	tolerance float64
	relative  bool
}

func (n numericTolerance) Score(_ context.Context, expected, actual, _ string) (Grade, error) {
	want, err := parseNumber(expected)
	if err != nil {
		return Grade{}, fmt.Errorf("expected answer: %w", err)
	}
	got, err := parseNumber(actual)
	if err != nil {
		return Grade{Explanation: fmt.Sprintf("no numeric value in %q", actual)}, nil
	}

	diff := math.Abs(want - got)
	limit := n.tolerance
	if n.relative {
		limit = n.tolerance * math.Abs(want)
	}
	if diff <= limit {
		return Grade{Score: 1, Passed: true}, nil
	}
	return Grade{Explanation: fmt.Sprintf("expected %v within %v, got %v (off by %v)", want, limit, got, diff)}, nil
}

// parseNumber extracts the first numeric token, tolerating thousands
// separators and surrounding prose.
func parseNumber(s string) (float64, error) {
	token := numberPattern.FindString(s)
	if token == "" {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}
	return strconv.ParseFloat(strings.ReplaceAll(token, ",", ""), 64)
}

// box is an axis-aligned rectangle as [x1, y1, x2, y2].
type box [4]float64

type localizationOverlap struct {
	threshold float64
}

func (l localizationOverlap) Score(_ context.Context, expected, actual, _ string) (Grade, error) {
	want, err := parseBox(expected)
	if err != nil {
		return Grade{}, fmt.Errorf("expected answer: %w", err)
	}
	got, err := parseBox(actual)
	if err != nil {
		return Grade{Explanation: fmt.Sprintf("no bounding box in %q", actual)}, nil
	}

	iou := intersectionOverUnion(want, got)
	if iou >= l.threshold {
		return Grade{Score: iou, Passed: true, Explanation: fmt.Sprintf("IoU %.3f", iou)}, nil
	}
	return Grade{Score: iou, Explanation: fmt.Sprintf("IoU %.3f below threshold %.3f", iou, l.threshold)}, nil
}

var boxPattern = regexp.MustCompile(`\[\s*-?[\d.]+\s*,\s*-?[\d.]+\s*,\s*-?[\d.]+\s*,\s*-?[\d.]+\s*\]`)

func parseBox(s string) (box, error) {
	raw := boxPattern.FindString(s)
	if raw == "" {
		return box{}, fmt.Errorf("no bounding box in %q", s)
	}
	var b box
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return box{}, err
	}
	if b[2] < b[0] || b[3] < b[1] {
		return box{}, fmt.Errorf("degenerate box %v", b)
	}
	return b, nil
}

func intersectionOverUnion(a, b box) float64 {
	ix := math.Max(0, math.Min(a[2], b[2])-math.Max(a[0], b[0]))
	iy := math.Max(0, math.Min(a[3], b[3])-math.Max(a[1], b[1]))
	inter := ix * iy
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b box) float64 {
	return (b[2] - b[0]) * (b[3] - b[1])
}

type mustInclude struct{}

func (mustInclude) Score(_ context.Context, expected, actual, _ string) (Grade, error) {
	missing := matchPhrases(expected, actual, false)
	if len(missing) == 0 {
		return Grade{Score: 1, Passed: true}, nil
	}
	return Grade{Explanation: fmt.Sprintf("answer missing required phrases: %s", strings.Join(missing, ", "))}, nil
}

type mustExclude struct{}

func (mustExclude) Score(_ context.Context, expected, actual, _ string) (Grade, error) {
	present := matchPhrases(expected, actual, true)
	if len(present) == 0 {
		return Grade{Score: 1, Passed: true}, nil
	}
	return Grade{Explanation: fmt.Sprintf("answer contains forbidden phrases: %s", strings.Join(present, ", "))}, nil
}

// matchPhrases checks each comma-separated phrase of expected against the
// answer. Single words must match as whole tokens so "ten" never matches
// "tension"; multi-word phrases match as substrings. With invert false it
// returns the phrases that are absent, with invert true the ones present.
func matchPhrases(expected, actual string, invert bool) []string {
	answer := cleanAnswer(actual)
	tokens := tokenSet(answer)

	var out []string
	for _, phrase := range strings.Split(expected, ",") {
		p := cleanAnswer(phrase)
		if p == "" {
			continue
		}
		var found bool
		if strings.ContainsAny(p, " \t") {
			found = strings.Contains(answer, p)
		} else {
			_, found = tokens[p]
		}
		if found == invert {
			out = append(out, p)
		}
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

type fuzzyMatch struct {
	judge Judge
}

func (f fuzzyMatch) Score(ctx context.Context, expected, actual, question string) (Grade, error) {
	verdict, err := f.judge.Judge(ctx, question, expected, actual)
	if err != nil {
		return Grade{}, err
	}

	v := strings.ToLower(strings.TrimSpace(verdict))
	switch {
	case strings.Contains(v, "partially correct"), strings.Contains(v, "incorrect"):
		return Grade{Explanation: fmt.Sprintf("judge verdict: %s", verdict)}, nil
	case strings.Contains(v, "correct"):
		return Grade{Score: 1, Passed: true, Explanation: fmt.Sprintf("judge verdict: %s", verdict)}, nil
	default:
		return Grade{}, fmt.Errorf("unrecognized judge verdict %q", verdict)
	}
}
