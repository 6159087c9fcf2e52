// Package participant implements the built-in agents: a reference
// participant that answers streamed task messages, and the assessor service
// that runs assessments on behalf of remote callers.
package participant

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/fieldbench/fieldbench/internal/envelope"
	"github.com/fieldbench/fieldbench/internal/models"
	"github.com/fieldbench/fieldbench/internal/transport"
)

// Version reported on the agent card.
const Version = "0.1.0"

// Responder produces an answer for one task message. The reference agent
// has no intelligence of its own; tests and demos plug in behavior here.
type Responder func(ctx context.Context, instruction string, inputs []models.InputFile) (string, error)

// EchoResponder answers every task with the fixed string "N/A", the
// benchmark's marker for "not achievable". Useful as a floor baseline.
func EchoResponder(context.Context, string, []models.InputFile) (string, error) {
	return "N/A", nil
}

// Agent is a participant that serves the streaming message protocol.
type Agent struct {
	name    string
	respond Responder
	logger  *slog.Logger
}

// NewAgent creates a participant agent.
func NewAgent(name string, respond Responder, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if respond == nil {
		respond = EchoResponder
	}
	return &Agent{name: name, respond: respond, logger: logger}
}

// Server builds the transport server for this agent.
func (a *Agent) Server() *transport.Server {
	srv := transport.NewServer(a.logger)
	srv.RegisterCard(transport.AgentCard{
		Name:      a.name,
		Version:   Version,
		Streaming: true,
	})
	srv.Register(transport.MethodMessageStream, a.handleStream)
	return srv
}

// Listen starts serving on addr and returns the listener so callers can
// read the bound address before blocking in Serve.
func (a *Agent) Listen(addr string) (*transport.Listener, error) {
	return transport.Listen(addr, a.Server())
}

func (a *Agent) handleStream(ctx context.Context, params json.RawMessage, notify transport.Notifier) (any, *transport.Error) {
	var msg envelope.Message
	if err := json.Unmarshal(params, &msg); err != nil {
		return nil, transport.ErrInvalidParams(err.Error())
	}

	instruction := envelope.Instruction(&msg)
	inputs, err := envelope.DecodeInputs(&msg)
	if err != nil {
		return nil, transport.ErrInvalidParams(err.Error())
	}

	a.logger.Debug("task received", "task", msg.TaskID, "inputs", len(inputs))

	// Interim update so callers see the task was accepted.
	working := envelope.StatusUpdate{State: envelope.StateWorking}
	if err := notify(transport.MethodMessageStatus, working); err != nil {
		return nil, transport.ErrInternalError(err.Error())
	}

	answer, err := a.respond(ctx, instruction, inputs)
	if err != nil {
		a.logger.Debug("responder failed", "task", msg.TaskID, "error", err)
		return envelope.StatusUpdate{
			State:   envelope.StateFailed,
			Final:   true,
			Message: envelope.NewMessage(envelope.RoleAgent, envelope.TextPart(err.Error())),
		}, nil
	}

	return envelope.StatusUpdate{
		State:   envelope.StateCompleted,
		Final:   true,
		Message: envelope.NewMessage(envelope.RoleAgent, envelope.TextPart(answer)),
	}, nil
}
