package models

// TaskStatus is the terminal state of one (task, participant) dispatch.
// Failures are represented here, never as a missing report entry.
type TaskStatus string

const (
	StatusCompleted      TaskStatus = "completed"
	StatusTimedOut       TaskStatus = "timed_out"
	StatusTransportError TaskStatus = "transport_error"
	StatusDecodeError    TaskStatus = "decode_error"
	StatusCancelled      TaskStatus = "cancelled"
)

// TaskResult is the outcome of dispatching one task to one participant.
// Produced by the dispatcher, consumed exactly once by the scorer, then
// retained read-only inside the report.
type TaskResult struct {
	TaskID      string     `json:"task_id"`
	Participant string     `json:"participant"`
	Status      TaskStatus `json:"status"`
	// Answer is the decoded final answer text. Empty unless Status is
	// StatusCompleted.
	Answer string `json:"answer,omitempty"`
	// Raw preserves the undecoded response payload for diagnostics.
	Raw        string `json:"raw,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	// ErrorMsg carries the transport or decode error when Status is not
	// StatusCompleted.
	ErrorMsg string `json:"error_msg,omitempty"`
}

// ScoredResult wraps a TaskResult with its grade. Immutable once produced.
type ScoredResult struct {
	Result      TaskResult    `json:"result"`
	Method      ScoringMethod `json:"method"`
	Score       float64       `json:"score"`
	Passed      bool          `json:"passed"`
	Explanation string        `json:"explanation,omitempty"`
	// Category is copied from the task so reports can aggregate without
	// re-resolving the catalog.
	Category Category `json:"category"`
}
