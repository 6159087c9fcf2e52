package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
)

// Notifier sends server-initiated notifications on the connection a request
// arrived on. Handlers use it to stream progress before returning the final
// result.
type Notifier func(method string, params any) error

// Handler processes one request. The returned value becomes the response
// result; a non-nil *Error becomes the response error.
type Handler func(ctx context.Context, params json.RawMessage, notify Notifier) (any, *Error)

// Server dispatches JSON-RPC 2.0 requests to registered method handlers.
// Both participant agents and the assessor server build on it.
type Server struct {
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewServer creates a server. A nil logger falls back to slog.Default.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a method name to a handler. Later registrations replace
// earlier ones.
func (s *Server) Register(method string, handler Handler) {
	s.handlers[method] = handler
}

// RegisterCard installs the agent/card handshake handler for the given card.
func (s *Server) RegisterCard(card AgentCard) {
	s.Register(MethodAgentCard, func(context.Context, json.RawMessage, Notifier) (any, *Error) {
		return card, nil
	})
}

// ServeConn reads requests from conn until EOF or a read error. Each
// connection is served by a single goroutine; handlers may stream
// notifications through the supplied Notifier.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer conn.Close() //nolint:errcheck
	w := newWire(conn, conn)

	notify := func(method string, params any) error {
		return w.writeNotification(&Notification{
			JSONRPC: "2.0",
			Method:  method,
			Params:  params,
		})
	}

	for {
		f, _, err := w.readFrame()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("connection read ended", "error", err)
			}
			return
		}

		// Notifications never receive a response per JSON-RPC 2.0.
		isNotification := f.isNotification()

		if f.JSONRPC != "2.0" {
			if isNotification {
				continue
			}
			s.respond(w, f.ID, nil, ErrInvalidRequest(`jsonrpc field must be "2.0"`))
			continue
		}

		handler, ok := s.handlers[f.Method]
		if !ok {
			if isNotification {
				continue
			}
			s.respond(w, f.ID, nil, ErrMethodNotFound(f.Method))
			continue
		}

		result, rpcErr := handler(ctx, f.Params, notify)
		if isNotification {
			continue
		}
		s.respond(w, f.ID, result, rpcErr)
	}
}

func (s *Server) respond(w *wire, id json.RawMessage, result any, rpcErr *Error) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	resp := &Response{JSONRPC: "2.0", ID: id}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	if err := w.writeResponse(resp); err != nil {
		s.logger.Debug("write error", "error", err)
	}
}

// Listener accepts TCP connections and serves each with the given server.
type Listener struct {
	listener net.Listener
	server   *Server
}

// Listen creates a TCP listener on addr.
func Listen(addr string, server *Server) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &TransportError{Endpoint: addr, Err: err}
	}
	return &Listener{listener: ln, server: server}, nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Serve accepts connections in a loop. It blocks until the listener is
// closed or ctx is cancelled.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.listener.Close() //nolint:errcheck
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go l.server.ServeConn(ctx, conn)
	}
}

// Close shuts down the listener.
func (l *Listener) Close() error {
	return l.listener.Close()
}
