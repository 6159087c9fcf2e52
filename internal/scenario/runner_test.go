package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/transport"
)

func TestStart_ProbesAlreadyRunningAgent(t *testing.T) {
	srv := transport.NewServer(nil)
	srv.RegisterCard(transport.AgentCard{Name: "external", Version: "1.0", Streaming: true})
	ln, err := transport.Listen("127.0.0.1:0", srv)
	require.NoError(t, err)
	defer ln.Close() //nolint:errcheck
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ln.Serve(ctx) //nolint:errcheck

	r := NewRunner(transport.NewClient(time.Second), nil, 2*time.Second)
	err = r.Start(context.Background(), []config.Agent{
		{Role: "candidate", Endpoint: ln.Addr().String()},
	})
	require.NoError(t, err)
	r.Stop()
}

func TestStart_ReadyTimeout(t *testing.T) {
	r := NewRunner(transport.NewClient(100*time.Millisecond), nil, 600*time.Millisecond)

	err := r.Start(context.Background(), []config.Agent{
		{Role: "candidate", Endpoint: "127.0.0.1:1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestStart_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(transport.NewClient(100*time.Millisecond), nil, 5*time.Second)
	err := r.Start(ctx, []config.Agent{
		{Role: "candidate", Endpoint: "127.0.0.1:1"},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStart_SpawnsAndTearsDown(t *testing.T) {
	r := NewRunner(transport.NewClient(time.Second), nil, time.Second)

	// sleep has no endpoint, so Start only spawns it and returns.
	err := r.Start(context.Background(), []config.Agent{
		{Role: "worker", Command: []string{"sleep", "60"}},
	})
	require.NoError(t, err)
	require.Len(t, r.procs, 1)
	pid := r.procs[0].Process.Pid
	assert.Greater(t, pid, 0)

	r.Stop()
	assert.Nil(t, r.procs)
	r.Stop() // idempotent
}

func TestStart_SpawnFailure(t *testing.T) {
	r := NewRunner(transport.NewClient(time.Second), nil, time.Second)

	err := r.Start(context.Background(), []config.Agent{
		{Role: "ghost", Command: []string{"/nonexistent/binary"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
