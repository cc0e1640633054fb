// Package websocket provides a Transport that exchanges one JSON-RPC message
// per WebSocket text frame.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
	"github.com/ggoodman/langclient-go/transport"
	"github.com/gorilla/websocket"
)

// Option configures Dial.
type Option func(*dialConfig)

type dialConfig struct {
	dialer *websocket.Dialer
	header http.Header
}

// WithAccessToken sends "Authorization: token <tok>" on the upgrade request.
func WithAccessToken(tok string) Option {
	return func(c *dialConfig) {
		if tok != "" {
			c.header.Set("Authorization", "token "+tok)
		}
	}
}

// WithHeader adds an arbitrary header to the upgrade request.
func WithHeader(key, value string) Option {
	return func(c *dialConfig) { c.header.Add(key, value) }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *dialConfig) { c.dialer = d }
}

// Factory returns a transport.Factory that dials url on every invocation.
func Factory(url string, opts ...Option) transport.Factory {
	return func(ctx context.Context) (transport.Transport, error) {
		return Dial(ctx, url, opts...)
	}
}

// Dial opens a WebSocket connection to url.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	cfg := dialConfig{dialer: websocket.DefaultDialer, header: http.Header{}}
	for _, o := range opts {
		o(&cfg)
	}

	ws, resp, err := cfg.dialer.DialContext(ctx, url, cfg.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return New(ws), nil
}

// Conn adapts a *websocket.Conn to transport.Transport.
type Conn struct {
	ws *websocket.Conn

	wmu    sync.Mutex
	closed atomic.Bool
}

// New wraps an established connection; it is used by Dial and by servers that
// accepted the connection through a websocket.Upgrader.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

const closeTimeout = time.Second

func (c *Conn) Write(ctx context.Context, msg jsonrpc.Message) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(dl)
		defer func() { _ = c.ws.SetWriteDeadline(time.Time{}) }()
	}
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Read returns the next text or binary frame. A normal close from the peer
// is reported as io.EOF.
func (c *Conn) Read(ctx context.Context) (jsonrpc.Message, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return nil, transport.ErrClosed
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil, fmt.Errorf("peer closed websocket: %w", err)
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return jsonrpc.Message(data), nil
		}
	}
}

// Close sends a close frame and closes the underlying connection. It does
// not wait for an in-flight Write; closing the socket fails it instead.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))
	return c.ws.Close()
}

var _ transport.Transport = (*Conn)(nil)
