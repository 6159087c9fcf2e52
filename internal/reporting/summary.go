package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/fieldbench/fieldbench/internal/models"
)

// InterpretScore returns a plain-language label for a mean score (0-1).
func InterpretScore(score float64) string {
	pct := score * 100
	switch {
	case pct > 90:
		return "Excellent (>90%)"
	case pct >= 70:
		return "Good (70-90%)"
	case pct >= 50:
		return "Needs Work (50-70%)"
	default:
		return "Poor (<50%)"
	}
}

// FormatSummaryReport produces the plain-language report printed after a
// run.
func FormatSummaryReport(report *models.AssessmentReport) string {
	var b strings.Builder

	s := report.Summary
	duration := time.Duration(s.DurationMs) * time.Millisecond

	b.WriteString("=== Assessment Summary ===\n\n")
	b.WriteString(fmt.Sprintf("Run:          %s (target %s)\n", report.RunID, report.Target))
	b.WriteString(fmt.Sprintf("Participants: %s\n", strings.Join(report.Participants, ", ")))
	b.WriteString(fmt.Sprintf("Pairs:        %d (%d completed, %d passed)\n", s.TotalPairs, s.Completed, s.Passed))
	b.WriteString(fmt.Sprintf("Mean Score:   %.2f, %s\n", s.ScoreRate, InterpretScore(s.ScoreRate)))
	if s.CI95 != nil {
		b.WriteString(fmt.Sprintf("95%% CI:       [%.2f, %.2f]\n", s.CI95.Lower, s.CI95.Upper))
	}
	b.WriteString(fmt.Sprintf("Duration:     %s\n", duration.Round(time.Millisecond)))

	if n := s.TimedOut + s.TransportErrors + s.DecodeErrors + s.Cancelled; n > 0 {
		b.WriteString(fmt.Sprintf("\n%d pair(s) produced no scorable answer:\n", n))
		if s.TimedOut > 0 {
			b.WriteString(fmt.Sprintf("  timed out:        %d\n", s.TimedOut))
		}
		if s.TransportErrors > 0 {
			b.WriteString(fmt.Sprintf("  transport errors: %d\n", s.TransportErrors))
		}
		if s.DecodeErrors > 0 {
			b.WriteString(fmt.Sprintf("  decode errors:    %d\n", s.DecodeErrors))
		}
		if s.Cancelled > 0 {
			b.WriteString(fmt.Sprintf("  cancelled:        %d\n", s.Cancelled))
		}
	}

	if len(s.PerCategory) > 0 {
		b.WriteString("\nBy category:\n")
		for _, g := range s.PerCategory {
			b.WriteString(fmt.Sprintf("  %-10s %d pair(s), mean %.2f\n", g.Name, g.Pairs, g.MeanScore))
		}
	}
	if len(s.PerParticipant) > 1 {
		b.WriteString("\nBy participant:\n")
		for _, g := range s.PerParticipant {
			b.WriteString(fmt.Sprintf("  %-10s %d pair(s), mean %.2f\n", g.Name, g.Pairs, g.MeanScore))
		}
	}

	return b.String()
}
