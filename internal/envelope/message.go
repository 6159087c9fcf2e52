// Package envelope implements the multimodal message format exchanged with
// participant agents: messages composed of text, file, and data parts, plus
// the streamed status updates a participant emits while working on a task.
package envelope

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldbench/fieldbench/internal/models"
)

// Role identifies the message sender.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// PartKind discriminates the part union.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

// FilePayload is a file embedded in a message, either inline (Bytes) or by
// remote reference (URI). FileKind preserves the task's declared kind across
// the wire; it is never re-derived on the receiving side.
type FilePayload struct {
	Name     string          `json:"name,omitempty"`
	MIMEType string          `json:"mime_type,omitempty"`
	FileKind models.FileKind `json:"file_kind,omitempty"`
	Bytes    []byte          `json:"bytes,omitempty"`
	URI      string          `json:"uri,omitempty"`
}

// Part is one element of a message. Exactly one of Text, File, or Data is
// set, selected by Kind.
type Part struct {
	Kind PartKind       `json:"kind"`
	Text string         `json:"text,omitempty"`
	File *FilePayload   `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Message is the envelope exchanged over the transport boundary.
type Message struct {
	Kind      string `json:"kind"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	MessageID string `json:"message_id"`
	ContextID string `json:"context_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
}

// NewMessage creates a message with a fresh message ID and the given parts.
func NewMessage(role Role, parts ...Part) *Message {
	return &Message{
		Kind:      "message",
		Role:      role,
		Parts:     parts,
		MessageID: uuid.NewString(),
	}
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// FilePart builds a file part.
func FilePart(file FilePayload) Part {
	f := file
	return Part{Kind: PartKindFile, File: &f}
}

// DataPart builds a structured-data part.
func DataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// Text concatenates the message's textual content: text parts verbatim and
// data parts as compact JSON, joined by newlines. File parts contribute
// their name so references stay visible in transcripts.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return MergeParts(m.Parts)
}

// MergeParts flattens parts into a single answer string.
func MergeParts(parts []Part) string {
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p.Kind {
		case PartKindText:
			chunks = append(chunks, p.Text)
		case PartKindData:
			if raw, err := json.Marshal(p.Data); err == nil {
				chunks = append(chunks, string(raw))
			}
		case PartKindFile:
			if p.File != nil && p.File.Name != "" {
				chunks = append(chunks, p.File.Name)
			}
		}
	}
	return strings.Join(chunks, "\n")
}

// TaskState is the lifecycle state a participant reports for a task.
type TaskState string

const (
	StateSubmitted TaskState = "submitted"
	StateWorking   TaskState = "working"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
	StateCanceled  TaskState = "canceled"
)

// Terminal reports whether the state ends the stream.
func (s TaskState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	}
	return false
}

// StatusUpdate is one streamed event from a participant. Final marks the
// terminal update; its message parts (and only those) form the answer.
// Non-final updates carry progress and are surfaced as status events.
type StatusUpdate struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
	Final   bool      `json:"final"`
}
