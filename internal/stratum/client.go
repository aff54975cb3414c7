package stratum

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// RPCError is the error object a pool may return alongside a reply.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("stratum: rpc error %d: %s", e.Code, e.Message)
}

// outgoing is the shape of a client -> server JSON-RPC call.
type outgoing struct {
	ID     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// frame is the shape of anything arriving on the wire: either a server
// notification (Method set, ID absent) or a reply to a prior request (ID
// set, Method absent).
type frame struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// pendingRequest is what the registry remembers about a request still
// awaiting a reply.
type pendingRequest struct {
	method string
	params []interface{}
}

// Handler receives dispatched frames from Client.Serve. A returned error
// ends the session; handlers should log and swallow anything non-fatal
// themselves.
type Handler interface {
	HandleNotify(method string, params json.RawMessage) error
	HandleReply(req pendingRequest, result json.RawMessage, rpcErr *RPCError) error
}

// Client is a line-framed Stratum JSON-RPC transport: it owns the
// socket, the outgoing id counter, and the registry of in-flight
// requests, all behind a single mutex, matching the donor's
// single-write-mutex design.
type Client struct {
	conn net.Conn

	// DumpProtocol, when set, logs every raw JSON-RPC line sent and
	// received at debug level. It must be set before Send/Serve are
	// called; it is not guarded by mu since it never changes afterward.
	DumpProtocol bool

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]pendingRequest
	log     *logrus.Entry
}

// NewClient wraps an already-connected socket.
func NewClient(conn net.Conn, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		conn:    conn,
		nextID:  1,
		pending: make(map[uint64]pendingRequest),
		log:     log,
	}
}

// Send assigns the next request id, writes the JSON-RPC call terminated
// by a newline, and registers the request so its reply can be matched.
// The write and the registry update happen under the same lock as the
// id increment, so ids are assigned in the order frames hit the wire.
func (c *Client) Send(method string, params ...interface{}) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	msg := outgoing{ID: id, Method: method, Params: params}
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("stratum: marshal %s: %w", method, err)
	}
	data = append(data, '\n')

	if c.DumpProtocol {
		c.log.WithField("line", string(data[:len(data)-1])).Debug("stratum: >>>")
	}

	if _, err := c.conn.Write(data); err != nil {
		return 0, fmt.Errorf("stratum: write %s: %w", method, err)
	}

	c.pending[id] = pendingRequest{method: method, params: params}
	c.nextID++
	return id, nil
}

// Serve reads newline-delimited JSON frames until the connection closes
// or a handler returns a fatal error. It reassembles lines arbitrarily
// split across read boundaries using bufio.Reader's ReadLine prefix
// continuation, the same idiom the donor's handleIncomingJSONLines uses.
func (c *Client) Serve(handler Handler) error {
	reader := bufio.NewReader(c.conn)

	for {
		line, err := readFullLine(reader)
		if err != nil {
			return fmt.Errorf("stratum: read: %w", err)
		}

		if c.DumpProtocol {
			c.log.WithField("line", string(line)).Debug("stratum: <<<")
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			c.log.WithError(err).Warn("stratum: malformed json frame, dropping")
			continue
		}

		if f.Method != "" {
			if err := handler.HandleNotify(f.Method, f.Params); err != nil {
				return err
			}
			continue
		}

		if f.ID == nil {
			c.log.Warn("stratum: frame with neither method nor id, dropping")
			continue
		}

		c.mu.Lock()
		req, ok := c.pending[*f.ID]
		if ok {
			delete(c.pending, *f.ID)
		}
		c.mu.Unlock()

		if !ok {
			c.log.WithError(fmt.Errorf("id %d: %w", *f.ID, ErrUnknownRequest)).Warn("stratum: dropping reply")
			continue
		}

		if err := handler.HandleReply(req, f.Result, f.Error); err != nil {
			return err
		}
	}
}

// readFullLine accumulates fragments from bufio.Reader.ReadLine until a
// full line has been read, regardless of how the underlying recv calls
// split it.
func readFullLine(r *bufio.Reader) ([]byte, error) {
	var full []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		full = append(full, chunk...)
		if !isPrefix {
			return full, nil
		}
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
