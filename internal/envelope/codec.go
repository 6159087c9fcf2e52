package envelope

import (
	"fmt"
	"strings"

	"github.com/fieldbench/fieldbench/internal/models"
)

// InlineLimit is the largest payload embedded directly in a message. Larger
// files are sent by remote reference instead.
const InlineLimit = 4 << 20

// DecodeError indicates a malformed or incomplete participant response.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decoding response: " + e.Reason
}

// EncodeTask converts a task into the request message sent to a participant:
// the rendered goal text first, then one file part per input in declaration
// order. Inputs with a fetched payload at or under InlineLimit are embedded
// inline; everything else goes by locator.
func EncodeTask(task *models.Task) *Message {
	parts := make([]Part, 0, len(task.Inputs)+1)
	parts = append(parts, TextPart(task.Goal()))

	for _, in := range task.Inputs {
		payload := FilePayload{
			Name:     in.Name,
			MIMEType: in.MIME,
			FileKind: in.Kind,
		}
		if len(in.Payload) > 0 && len(in.Payload) <= InlineLimit {
			payload.Bytes = in.Payload
		} else {
			payload.URI = in.Name
		}
		parts = append(parts, FilePart(payload))
	}

	msg := NewMessage(RoleUser, parts...)
	msg.TaskID = task.ID
	return msg
}

// DecodeInputs extracts the file parts of a request message back into input
// files. Inline payloads come back byte-identical; the declared kind is
// taken from the part, never re-derived.
func DecodeInputs(msg *Message) ([]models.InputFile, error) {
	var inputs []models.InputFile
	for i, p := range msg.Parts {
		if p.Kind != PartKindFile {
			continue
		}
		if p.File == nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("file part %d has no payload", i)}
		}
		name := p.File.Name
		if name == "" {
			name = p.File.URI
		}
		inputs = append(inputs, models.InputFile{
			Kind:    p.File.FileKind,
			Name:    name,
			MIME:    p.File.MIMEType,
			Payload: p.File.Bytes,
		})
	}
	return inputs, nil
}

// Instruction returns the first text part of a request message.
func Instruction(msg *Message) string {
	for _, p := range msg.Parts {
		if p.Kind == PartKindText {
			return p.Text
		}
	}
	return ""
}

// streamState tracks progress through a response stream. The decoder is an
// explicit state machine so timeout and cancellation interactions stay
// simple to reason about.
type streamState int

const (
	stateAwaitingFirst streamState = iota
	stateAccumulating
	stateTerminal
)

// StreamDecoder consumes streamed status updates and assembles the final
// answer. Only updates carrying the terminal marker contribute parts to the
// answer; intermediate updates are progress.
type StreamDecoder struct {
	state  streamState
	chunks []string
	final  TaskState
}

// NewStreamDecoder returns a decoder in the awaiting-first-part state.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{state: stateAwaitingFirst}
}

// Feed consumes one update. It returns true when the terminal marker has
// been seen and the stream is complete. Updates after the terminal marker
// are a protocol violation.
func (d *StreamDecoder) Feed(u *StatusUpdate) (bool, error) {
	if u == nil {
		return false, &DecodeError{Reason: "nil status update"}
	}

	switch d.state {
	case stateTerminal:
		return true, &DecodeError{Reason: "update received after terminal marker"}
	case stateAwaitingFirst:
		d.state = stateAccumulating
	}

	terminal := u.Final || u.State.Terminal()
	if terminal {
		if u.Message != nil {
			if text := u.Message.Text(); text != "" {
				d.chunks = append(d.chunks, text)
			}
		}
		d.state = stateTerminal
		d.final = u.State
		return true, nil
	}

	return false, nil
}

// Done reports whether the terminal marker has been consumed.
func (d *StreamDecoder) Done() bool {
	return d.state == stateTerminal
}

// FinalState returns the terminal task state, valid only once Done.
func (d *StreamDecoder) FinalState() TaskState {
	return d.final
}

// Answer returns the assembled final answer. Calling it before a terminal
// marker arrived (e.g. the stream closed early) is a DecodeError.
func (d *StreamDecoder) Answer() (string, error) {
	if d.state != stateTerminal {
		return "", &DecodeError{Reason: "stream closed before terminal marker"}
	}
	if d.final == StateFailed || d.final == StateCanceled {
		return "", &DecodeError{Reason: fmt.Sprintf("participant reported terminal state %q", d.final)}
	}
	return strings.Join(d.chunks, "\n"), nil
}
