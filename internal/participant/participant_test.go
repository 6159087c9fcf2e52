package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbench/fieldbench/internal/catalog"
	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/envelope"
	"github.com/fieldbench/fieldbench/internal/models"
	"github.com/fieldbench/fieldbench/internal/transport"
)

func serve(t *testing.T, ln *transport.Listener) string {
	t.Helper()
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ln.Serve(ctx) //nolint:errcheck
	return ln.Addr().String()
}

func TestAgent_AnswersStream(t *testing.T) {
	agent := NewAgent("reference", nil, nil)
	ln, err := agent.Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := serve(t, ln)

	client := transport.NewClient(time.Second)

	card, err := client.Handshake(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, "reference", card.Name)
	assert.True(t, card.Streaming)

	task := &models.Task{
		ID:     "fb.1.1.0001",
		Query:  "How many pallets?",
		Inputs: []models.InputFile{{Kind: models.FileKindText, Name: "notes.txt", Payload: []byte("twelve")}},
	}
	stream, err := client.OpenStream(context.Background(), addr, envelope.EncodeTask(task))
	require.NoError(t, err)
	defer stream.Close() //nolint:errcheck

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, envelope.StateWorking, first.State)

	final, err := stream.Recv()
	require.NoError(t, err)
	assert.True(t, final.Final)
	assert.Equal(t, envelope.StateCompleted, final.State)
	assert.Equal(t, "N/A", final.Message.Text(), "echo responder answers N/A")
}

func TestAgent_ResponderSeesInputs(t *testing.T) {
	var gotInstruction string
	var gotInputs []models.InputFile
	agent := NewAgent("probe", func(_ context.Context, instruction string, inputs []models.InputFile) (string, error) {
		gotInstruction = instruction
		gotInputs = inputs
		return "3", nil
	}, nil)
	ln, err := agent.Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := serve(t, ln)

	task := &models.Task{
		ID:     "fb.1.1.0001",
		Query:  "Count the crates.",
		Inputs: []models.InputFile{{Kind: models.FileKindImage, Name: "floor.png", MIME: "image/png", Payload: []byte{1, 2, 3}}},
	}

	client := transport.NewClient(time.Second)
	stream, err := client.OpenStream(context.Background(), addr, envelope.EncodeTask(task))
	require.NoError(t, err)
	defer stream.Close() //nolint:errcheck

	for {
		u, err := stream.Recv()
		require.NoError(t, err)
		if u.Final {
			assert.Equal(t, "3", u.Message.Text())
			break
		}
	}

	assert.Contains(t, gotInstruction, "Count the crates.")
	require.Len(t, gotInputs, 1)
	assert.Equal(t, "floor.png", gotInputs[0].Name)
	assert.Equal(t, []byte{1, 2, 3}, gotInputs[0].Payload)
}

func TestAgent_ResponderFailure(t *testing.T) {
	agent := NewAgent("broken", func(context.Context, string, []models.InputFile) (string, error) {
		return "", errors.New("camera offline")
	}, nil)
	ln, err := agent.Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := serve(t, ln)

	client := transport.NewClient(time.Second)
	stream, err := client.OpenStream(context.Background(), addr,
		envelope.EncodeTask(&models.Task{ID: "fb.1.1.0001", Query: "q"}))
	require.NoError(t, err)
	defer stream.Close() //nolint:errcheck

	var final *envelope.StatusUpdate
	for {
		u, err := stream.Recv()
		require.NoError(t, err)
		if u.Final {
			final = u
			break
		}
	}
	assert.Equal(t, envelope.StateFailed, final.State)
	assert.Contains(t, final.Message.Text(), "camera offline")
}

func TestAssessor_RunOverWire(t *testing.T) {
	// Reference agent answering N/A, so an exact-match task expecting N/A
	// passes.
	agent := NewAgent("reference", nil, nil)
	agentLn, err := agent.Listen("127.0.0.1:0")
	require.NoError(t, err)
	agentAddr := serve(t, agentLn)

	dir := t.TempDir()
	doc := `{
  "task_id": "fb.1.1.0001",
  "category": "factory",
  "question": "Is the dock clear?",
  "answer": "N/A",
  "scoring": {"method": "exact-match"}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(doc), 0o644))
	cat, err := catalog.Load(dir)
	require.NoError(t, err)

	cfg := config.New()
	cfg.Assessor.Role = "assessor"
	cfg.Participants = []config.Agent{{Role: "candidate", Endpoint: agentAddr}}

	assessor := NewAssessor(cfg, cat, nil, transport.NewClient(time.Second), nil, nil, nil)
	assessorLn, err := assessor.Listen("127.0.0.1:0")
	require.NoError(t, err)
	assessorAddr := serve(t, assessorLn)

	client := transport.NewClient(time.Second)
	var report models.AssessmentReport
	var eventTypes []string
	err = client.Call(context.Background(), assessorAddr, transport.MethodAssessRun,
		RunParams{}, &report,
		func(method string, params json.RawMessage) {
			require.Equal(t, transport.MethodAssessEvent, method)
			var e RunEvent
			require.NoError(t, json.Unmarshal(params, &e))
			eventTypes = append(eventTypes, e.Type)
		})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusCompleted, report.Results[0].Result.Status)
	assert.True(t, report.Results[0].Passed)
	assert.Equal(t, 1, report.Summary.Passed)

	assert.Contains(t, eventTypes, "run_start")
	assert.Contains(t, eventTypes, "task_complete")
	assert.Equal(t, "run_complete", eventTypes[len(eventTypes)-1])
}

func TestAssessor_BadTarget(t *testing.T) {
	dir := t.TempDir()
	doc := fmt.Sprintf(`{
  "task_id": %q,
  "category": "factory",
  "question": "q",
  "answer": "a",
  "scoring": {"method": "exact-match"}
}`, "fb.1.1.0001")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(doc), 0o644))
	cat, err := catalog.Load(dir)
	require.NoError(t, err)

	cfg := config.New()
	cfg.Assessor.Role = "assessor"
	cfg.Participants = []config.Agent{{Role: "candidate", Endpoint: "127.0.0.1:1"}}

	assessor := NewAssessor(cfg, cat, nil, transport.NewClient(200*time.Millisecond), nil, nil, nil)
	ln, err := assessor.Listen("127.0.0.1:0")
	require.NoError(t, err)
	addr := serve(t, ln)

	client := transport.NewClient(time.Second)
	err = client.Call(context.Background(), addr, transport.MethodAssessRun,
		RunParams{Target: "custom"}, nil, nil)
	var rpcErr *transport.Error
	require.ErrorAs(t, err, &rpcErr)
}
