// Package cdp is a Chrome DevTools Protocol client: a single WebSocket
// connection carrying id-correlated call/reply pairs, with typed façades
// for the cookie, page-storage, and tab facilities the daemon needs.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sessionvault/sessionvault/internal/infrastructure/monitoring"
	"github.com/sessionvault/sessionvault/internal/logging"
)

const (
	writeBufferSize = 1 << 20
	dialTimeout     = 10 * time.Second
)

// ErrClosed is returned by calls issued after the connection shut down.
var ErrClosed = fmt.Errorf("cdp: connection closed")

// message is the JSON-RPC-ish frame CDP speaks in both directions. Frames
// with an id are call/reply pairs; frames without one are events.
type message struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    interface{}     `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *callError      `json:"error,omitempty"`
}

// callError is the protocol-level error attached to a failed reply.
type callError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *callError) Error() string {
	return fmt.Sprintf("cdp: %s (code %d)", e.Message, e.Code)
}

// Client owns one browser-level WebSocket connection. Replies are routed to
// their callers by message id; events are currently drained and dropped.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	msgID   atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan *message

	done      chan struct{}
	closeOnce sync.Once

	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// Dial connects to a browser-level WebSocket debugger URL.
func Dial(ctx context.Context, wsURL string, metrics *monitoring.Metrics, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
		ReadBufferSize:   writeBufferSize,
		WriteBufferSize:  writeBufferSize,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cdp: dial %s: %w", wsURL, err)
	}

	c := &Client{
		conn:    conn,
		pending: map[int64]chan *message{},
		done:    make(chan struct{}),
		metrics: metrics,
		logger:  logger.Component("cdp"),
	}
	if metrics != nil {
		metrics.SetBrowserAttached(true)
	}

	go c.readLoop()
	return c, nil
}

// Call issues one method over the connection and decodes the reply into
// out (which may be nil when the result is irrelevant). An empty sessionID
// targets the browser-level session.
func (c *Client) Call(ctx context.Context, sessionID, method string, params, out interface{}) error {
	start := time.Now()
	err := c.call(ctx, sessionID, method, params, out)

	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordBrowserCall(method, status, time.Since(start))
	}
	return err
}

func (c *Client) call(ctx context.Context, sessionID, method string, params, out interface{}) error {
	id := c.msgID.Add(1)
	reply := make(chan *message, 1)

	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	frame := message{ID: id, SessionID: sessionID, Method: method, Params: params}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("cdp: write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	case msg := <-reply:
		if msg.Error != nil {
			return fmt.Errorf("cdp: call %s: %w", method, msg.Error)
		}
		if out != nil {
			if err := json.Unmarshal(msg.Result, out); err != nil {
				return fmt.Errorf("cdp: decode %s reply: %w", method, err)
			}
		}
		return nil
	}
}

// readLoop routes replies to waiting callers until the connection dies.
func (c *Client) readLoop() {
	defer c.shutdown()

	for {
		var msg message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("connection read failed", zap.Error(err))
			}
			return
		}

		if msg.ID == 0 {
			// Event frame. Nothing here subscribes to events yet.
			continue
		}

		c.pendingMu.Lock()
		reply, ok := c.pending[msg.ID]
		c.pendingMu.Unlock()
		if ok {
			m := msg
			reply <- &m
		}
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		if c.metrics != nil {
			c.metrics.SetBrowserAttached(false)
		}
	})
}

// Close tears the connection down. In-flight calls fail with ErrClosed.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}
