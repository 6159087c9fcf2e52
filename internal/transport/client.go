package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/fieldbench/fieldbench/internal/envelope"
)

// Streamer is the client-side capability the dispatcher depends on: a
// handshake probe plus a unary-request/streamed-response exchange.
//
//go:generate mockgen -source=client.go -destination=mocks/streamer.go -package=mocks Streamer
type Streamer interface {
	// Handshake fetches the agent card from an endpoint, verifying it is
	// reachable and speaks the protocol.
	Handshake(ctx context.Context, endpoint string) (*AgentCard, error)

	// OpenStream sends a task message and returns the response stream.
	OpenStream(ctx context.Context, endpoint string, msg *envelope.Message) (Stream, error)
}

// Stream yields streamed status updates for one in-flight task message.
// Recv returns io.EOF once the final response has been consumed.
type Stream interface {
	Recv() (*envelope.StatusUpdate, error)
	Close() error
}

// Client dials fieldbench agents over TCP.
type Client struct {
	dialTimeout time.Duration
}

// NewClient returns a client with the given dial timeout (zero means the
// context alone bounds dialing).
func NewClient(dialTimeout time.Duration) *Client {
	return &Client{dialTimeout: dialTimeout}
}

var _ Streamer = (*Client)(nil)

func (c *Client) dial(ctx context.Context, endpoint string) (net.Conn, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	return conn, nil
}

// Handshake performs the agent-card exchange against an endpoint.
func (c *Client) Handshake(ctx context.Context, endpoint string) (*AgentCard, error) {
	conn, err := c.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck

	w := newWire(conn, conn)
	req := &Request{
		JSONRPC: "2.0",
		Method:  MethodAgentCard,
		ID:      json.RawMessage(`1`),
	}
	if err := w.writeRequest(req); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	stop := closeOnDone(ctx, conn)
	defer stop()

	f, _, err := w.readFrame()
	if err != nil {
		return nil, wrapReadError(ctx, endpoint, err)
	}
	if f.Error != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: f.Error}
	}

	var card AgentCard
	if err := json.Unmarshal(f.Result, &card); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decoding agent card: %w", err)}
	}
	return &card, nil
}

// Call performs a unary JSON-RPC exchange, streaming any notifications to
// onEvent before the final result arrives. Used by the run client to talk
// to a remote assessor.
func (c *Client) Call(ctx context.Context, endpoint, method string, params any, result any, onEvent func(method string, params json.RawMessage)) error {
	conn, err := c.dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	w := newWire(conn, conn)
	raw, err := marshalParams(params)
	if err != nil {
		return err
	}
	req := &Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  raw,
		ID:      json.RawMessage(`1`),
	}
	if err := w.writeRequest(req); err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	stop := closeOnDone(ctx, conn)
	defer stop()

	for {
		f, _, err := w.readFrame()
		if err != nil {
			return wrapReadError(ctx, endpoint, err)
		}
		if f.isNotification() {
			if onEvent != nil {
				onEvent(f.Method, f.Params)
			}
			continue
		}
		if !f.isResponse() {
			return &TransportError{Endpoint: endpoint, Err: errors.New("unexpected frame from peer")}
		}
		if f.Error != nil {
			return f.Error
		}
		if result != nil {
			if err := json.Unmarshal(f.Result, result); err != nil {
				return &TransportError{Endpoint: endpoint, Err: fmt.Errorf("decoding result: %w", err)}
			}
		}
		return nil
	}
}

// OpenStream sends msg with the message/stream method and returns the
// response stream. Cancelling ctx closes the underlying connection, which
// unblocks any pending Recv.
func (c *Client) OpenStream(ctx context.Context, endpoint string, msg *envelope.Message) (Stream, error) {
	conn, err := c.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	w := newWire(conn, conn)
	raw, err := marshalParams(msg)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, err
	}
	req := &Request{
		JSONRPC: "2.0",
		Method:  MethodMessageStream,
		Params:  raw,
		ID:      json.RawMessage(`1`),
	}
	if err := w.writeRequest(req); err != nil {
		conn.Close() //nolint:errcheck
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}

	s := &clientStream{
		endpoint: endpoint,
		ctx:      ctx,
		conn:     conn,
		wire:     w,
	}
	s.stop = closeOnDone(ctx, conn)
	return s, nil
}

type clientStream struct {
	endpoint string
	ctx      context.Context
	conn     net.Conn
	wire     *wire
	stop     func()
	done     atomic.Bool
}

// Recv returns the next status update. The response frame carries the
// terminal update; after it has been delivered Recv returns io.EOF.
func (s *clientStream) Recv() (*envelope.StatusUpdate, error) {
	if s.done.Load() {
		return nil, io.EOF
	}

	for {
		f, _, err := s.wire.readFrame()
		if err != nil {
			return nil, wrapReadError(s.ctx, s.endpoint, err)
		}

		switch {
		case f.isNotification():
			if f.Method != MethodMessageStatus {
				continue // unknown notifications are ignored, not fatal
			}
			var update envelope.StatusUpdate
			if err := json.Unmarshal(f.Params, &update); err != nil {
				return nil, &TransportError{Endpoint: s.endpoint, Err: fmt.Errorf("decoding status update: %w", err)}
			}
			return &update, nil

		case f.isResponse():
			s.done.Store(true)
			if f.Error != nil {
				return nil, &TransportError{Endpoint: s.endpoint, Err: f.Error}
			}
			var update envelope.StatusUpdate
			if err := json.Unmarshal(f.Result, &update); err != nil {
				return nil, &TransportError{Endpoint: s.endpoint, Err: fmt.Errorf("decoding final update: %w", err)}
			}
			// The response is the terminal marker regardless of what the
			// participant set on the update itself.
			update.Final = true
			return &update, nil

		default:
			return nil, &TransportError{Endpoint: s.endpoint, Err: errors.New("unexpected frame from peer")}
		}
	}
}

func (s *clientStream) Close() error {
	s.stop()
	return s.conn.Close()
}

// closeOnDone closes conn when ctx is cancelled, unblocking reads. The
// returned stop function releases the watcher.
func closeOnDone(ctx context.Context, conn net.Conn) (stop func()) {
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() //nolint:errcheck
		case <-stopCh:
		}
	}()
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			close(stopCh)
		}
	}
}

// wrapReadError converts a read failure into either the context error (when
// the caller cancelled or timed out) or a TransportError.
func wrapReadError(ctx context.Context, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return &TransportError{Endpoint: endpoint, Err: err}
}
