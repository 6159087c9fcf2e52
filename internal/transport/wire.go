package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// frame is the superset of request, response, and notification shapes used
// when reading from a peer; the populated fields decide which one arrived.
type frame struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// isNotification reports whether the frame is a server notification.
func (f *frame) isNotification() bool {
	return f.Method != "" && len(f.ID) == 0
}

// isResponse reports whether the frame answers an outstanding request.
func (f *frame) isResponse() bool {
	return f.Method == "" && len(f.ID) > 0
}

// wire reads and writes newline-delimited JSON messages over a byte stream.
// Writes are serialized; reads are single-consumer.
type wire struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex
}

func newWire(r io.Reader, w io.Writer) *wire {
	return &wire{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

// readFrame reads one JSON-RPC message (a single line).
func (t *wire) readFrame() (*frame, []byte, error) {
	line, err := t.reader.ReadBytes('\n')
	if err != nil {
		return nil, nil, err
	}

	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, line, fmt.Errorf("invalid JSON: %w", err)
	}
	return &f, line, nil
}

func (t *wire) writeJSON(v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = t.writer.Write(data)
	return err
}

// writeRequest sends a JSON-RPC request (newline-delimited).
func (t *wire) writeRequest(req *Request) error {
	return t.writeJSON(req)
}

// writeResponse sends a JSON-RPC response (newline-delimited).
func (t *wire) writeResponse(resp *Response) error {
	return t.writeJSON(resp)
}

// writeNotification sends a JSON-RPC notification (newline-delimited).
func (t *wire) writeNotification(notif *Notification) error {
	return t.writeJSON(notif)
}

func marshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling params: %w", err)
	}
	return raw, nil
}
