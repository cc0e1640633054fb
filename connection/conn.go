// Package connection implements a bidirectional JSON-RPC 2.0 connection over
// a transport.Transport.
//
// A Conn correlates outbound requests with their responses by id and
// dispatches inbound requests and notifications to registered handlers. A
// single goroutine reads from the transport, so handlers observe messages in
// transport order and never run concurrently with each other.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
	"github.com/ggoodman/langclient-go/internal/logctx"
	"github.com/ggoodman/langclient-go/internal/outbound"
	"github.com/ggoodman/langclient-go/metrics"
	"github.com/ggoodman/langclient-go/observable"
	"github.com/ggoodman/langclient-go/transport"
)

type requestEntry struct{ h RequestHandler }

type notificationEntry struct{ h NotificationHandler }

// Conn is a running JSON-RPC connection. It is created Running and moves
// through Closing to Closed exactly once.
type Conn struct {
	t       transport.Transport
	log     *slog.Logger
	metrics *metrics.Metrics

	pending *outbound.Table
	wmu     sync.Mutex

	hmu           sync.RWMutex
	requests      map[string]*requestEntry
	notifications map[string]*notificationEntry

	state *observable.Subject[State]

	ctx    context.Context
	cancel context.CancelFunc

	closed   atomic.Bool
	closeErr error
	done     chan struct{}
}

// New takes ownership of t and starts dispatching inbound messages.
func New(t transport.Transport, opts ...Option) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		t:             t,
		log:           slog.Default(),
		pending:       outbound.New(),
		requests:      make(map[string]*requestEntry),
		notifications: make(map[string]*notificationEntry),
		state:         observable.NewSubject(StateRunning),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = slog.New(logctx.New(c.log.Handler()))
	c.metrics.Transition(StateRunning.String())

	go c.readLoop()
	return c
}

// State exposes the connection's lifecycle transitions.
func (c *Conn) State() *observable.Subject[State] { return c.state }

// Done is closed once the connection reaches Closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the connection closed, or nil while it is running.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

// Call sends a request and waits for its response, decoding the result into
// result when it is non-nil. ctx bounds only the wait; the request is not
// cancelled on the peer.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	call, err := c.pending.Begin()
	if err != nil {
		return err
	}
	finish := c.metrics.RequestStarted(method)

	req, err := jsonrpc.NewRequest(call.ID, method, params)
	if err != nil {
		c.pending.Forget(call.ID)
		finish("error")
		return err
	}

	rctx := logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: method, ID: call.ID.String(), Type: string(jsonrpc.TypeRequest)})
	if err := c.write(rctx, req, jsonrpc.TypeRequest); err != nil {
		c.pending.Forget(call.ID)
		finish("error")
		return err
	}

	resp, err := call.Wait(ctx)
	if err != nil {
		if errors.Is(err, ErrConnectionClosed) {
			finish("closed")
		} else {
			finish("cancelled")
		}
		return err
	}
	if resp.Error != nil {
		finish("remote_error")
		return &RemoteError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
	}
	finish("ok")

	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Notify sends a notification.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	req, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	nctx := logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: method, Type: string(jsonrpc.TypeNotification)})
	return c.write(nctx, req, jsonrpc.TypeNotification)
}

// OnRequest installs the handler for inbound requests of method. A method has
// at most one handler; a second registration fails with ErrDuplicateHandler
// and leaves the first in place.
func (c *Conn) OnRequest(method string, h RequestHandler) (unregister func(), err error) {
	if h == nil || method == "" {
		return nil, fmt.Errorf("%w: request handler requires a method and a func", ErrMisuse)
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()

	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	if _, ok := c.requests[method]; ok {
		return nil, fmt.Errorf("%w: request %q", ErrDuplicateHandler, method)
	}
	e := &requestEntry{h: h}
	c.requests[method] = e
	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		if c.requests[method] == e {
			delete(c.requests, method)
		}
	}, nil
}

// OnNotification installs the handler for inbound notifications of method.
func (c *Conn) OnNotification(method string, h NotificationHandler) (unregister func(), err error) {
	if h == nil || method == "" {
		return nil, fmt.Errorf("%w: notification handler requires a method and a func", ErrMisuse)
	}
	c.hmu.Lock()
	defer c.hmu.Unlock()

	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	if _, ok := c.notifications[method]; ok {
		return nil, fmt.Errorf("%w: notification %q", ErrDuplicateHandler, method)
	}
	e := &notificationEntry{h: h}
	c.notifications[method] = e
	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		if c.notifications[method] == e {
			delete(c.notifications, method)
		}
	}, nil
}

// Close shuts the connection down, rejecting every pending request with
// ErrConnectionClosed. It is safe to call more than once and from handlers.
func (c *Conn) Close() error {
	return c.shutdown(ErrConnectionClosed)
}

func (c *Conn) shutdown(cause error) error {
	// State observers may re-enter Close.
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.closeErr = cause
	c.setState(StateClosing)

	c.cancel()
	var err error
	if cerr := c.t.Close(); cerr != nil {
		err = fmt.Errorf("%w: close: %w", ErrTransport, cerr)
	}
	c.pending.Close(cause)

	c.setState(StateClosed)
	close(c.done)
	return err
}

func (c *Conn) setState(s State) {
	c.metrics.Transition(s.String())
	c.state.Next(s)
}

func (c *Conn) write(ctx context.Context, v any, typ jsonrpc.MessageType) error {
	msg, err := jsonrpc.Encode(v)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := c.t.Write(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return err
		}
		if c.closed.Load() {
			return ErrConnectionClosed
		}
		tErr := transportFailure(err)
		c.log.ErrorContext(ctx, "connection.write.fail", slog.String("err", err.Error()))
		// Shut down after releasing the write lock.
		go c.shutdown(tErr)
		return tErr
	}
	c.metrics.Message(metrics.Outbound, string(typ))
	return nil
}

func (c *Conn) readLoop() {
	for {
		msg, err := c.t.Read(c.ctx)
		if err != nil {
			switch {
			case c.closed.Load():
			case errors.Is(err, io.EOF):
				c.log.Info("connection.peer_closed")
				_ = c.shutdown(fmt.Errorf("%w: peer closed the transport", ErrConnectionClosed))
			default:
				c.log.Error("connection.read.fail", slog.String("err", err.Error()))
				_ = c.shutdown(transportFailure(err))
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg jsonrpc.Message) {
	m, err := jsonrpc.Decode(msg)
	if err != nil {
		c.metrics.ProtocolError("malformed")
		c.log.Warn("connection.protocol.malformed", slog.String("err", err.Error()))
		if id := jsonrpc.PeekID(msg); !id.IsNil() {
			resp := jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInvalidRequest, "invalid request: "+err.Error(), nil)
			if err := c.write(c.ctx, resp, jsonrpc.TypeResponse); err != nil {
				c.log.Debug("connection.reply.fail", slog.String("err", err.Error()))
			}
		}
		return
	}

	typ := m.Type()
	c.metrics.Message(metrics.Inbound, string(typ))
	ctx := logctx.WithRPCMessage(c.ctx, &logctx.RPCMessage{Method: m.Method, ID: m.ID.String(), Type: string(typ)})

	switch typ {
	case jsonrpc.TypeResponse:
		if !c.pending.Resolve(m.AsResponse()) {
			c.metrics.ProtocolError("unmatched_response")
			c.log.WarnContext(ctx, "connection.protocol.unmatched_response")
		}
	case jsonrpc.TypeRequest:
		c.handleRequest(ctx, m.AsRequest())
	case jsonrpc.TypeNotification:
		c.handleNotification(ctx, m.AsRequest())
	}
}

func (c *Conn) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	c.hmu.RLock()
	e := c.requests[req.Method]
	c.hmu.RUnlock()

	var resp *jsonrpc.Response
	if e == nil {
		c.log.DebugContext(ctx, "connection.request.unhandled")
		resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "method not found: "+req.Method, nil)
	} else {
		result, err := invokeRequest(ctx, e.h, req.Params)
		if err == nil {
			resp, err = jsonrpc.NewResultResponse(req.ID, result)
		}
		if err != nil {
			var re *RemoteError
			if errors.As(err, &re) {
				resp = jsonrpc.NewErrorResponse(req.ID, re.Code, re.Message, re.Data)
			} else {
				c.log.ErrorContext(ctx, "connection.request.fail", slog.String("err", err.Error()))
				resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
			}
		}
	}

	if err := c.write(ctx, resp, jsonrpc.TypeResponse); err != nil {
		c.log.DebugContext(ctx, "connection.reply.fail", slog.String("err", err.Error()))
	}
}

func (c *Conn) handleNotification(ctx context.Context, req *jsonrpc.Request) {
	c.hmu.RLock()
	e := c.notifications[req.Method]
	c.hmu.RUnlock()

	if e == nil {
		c.log.DebugContext(ctx, "connection.notification.unhandled")
		return
	}
	if err := invokeNotification(ctx, e.h, req.Params); err != nil {
		c.metrics.ProtocolError("notification_handler")
		c.log.WarnContext(ctx, "connection.notification.fail", slog.String("err", err.Error()))
	}
}

func invokeRequest(ctx context.Context, h RequestHandler, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, params)
}

func invokeNotification(ctx context.Context, h NotificationHandler, params json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, params)
}
