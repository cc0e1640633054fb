// Package outbound tracks locally-initiated JSON-RPC requests until the peer
// answers them. It is transport-agnostic: callers write the request themselves
// and feed every inbound response to Resolve.
package outbound

import (
	"context"
	"errors"
	"sync"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
)

// ErrTableClosed is the default rejection for calls pending at Close.
var ErrTableClosed = errors.New("pending table closed")

type outcome struct {
	resp *jsonrpc.Response
	err  error
}

// Call is a single in-flight request awaiting its response.
type Call struct {
	ID *jsonrpc.RequestID

	t  *Table
	ch chan outcome
}

// Wait blocks until the call is resolved, rejected by Close, or ctx ends. On
// ctx expiry the pending entry is discarded; a late response for it is then
// reported as unmatched by Resolve.
func (c *Call) Wait(ctx context.Context) (*jsonrpc.Response, error) {
	select {
	case o := <-c.ch:
		return o.resp, o.err
	case <-ctx.Done():
		c.t.Forget(c.ID)
		// Resolution may have raced with cancellation.
		select {
		case o := <-c.ch:
			return o.resp, o.err
		default:
		}
		return nil, ctx.Err()
	}
}

// Table correlates outbound request ids with their eventual responses. Ids
// are allocated monotonically starting at 1 and never reused.
type Table struct {
	mu      sync.Mutex
	pending map[int64]*Call
	nextID  int64

	closed   bool
	closeErr error
}

// New constructs an empty Table.
func New() *Table {
	return &Table{pending: make(map[int64]*Call)}
}

// Begin allocates a fresh id and registers a pending call for it. It must be
// called before the request is written so that a fast response cannot be
// missed.
func (t *Table) Begin() (*Call, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, t.closeErr
	}

	t.nextID++
	c := &Call{ID: jsonrpc.NewRequestID(t.nextID), t: t, ch: make(chan outcome, 1)}
	t.pending[t.nextID] = c
	return c, nil
}

// Resolve delivers a response to its waiting call. It reports false when no
// call is pending under the response id. Ids are matched by type and value:
// a string "1" does not answer the numeric request 1.
func (t *Table) Resolve(resp *jsonrpc.Response) bool {
	if resp == nil {
		return false
	}
	key, ok := numericID(resp.ID)
	if !ok {
		return false
	}

	t.mu.Lock()
	c, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()

	if ok {
		c.ch <- outcome{resp: resp}
	}
	return ok
}

// Forget drops a pending call without resolving it.
func (t *Table) Forget(id *jsonrpc.RequestID) {
	key, ok := numericID(id)
	if !ok {
		return
	}
	t.mu.Lock()
	delete(t.pending, key)
	t.mu.Unlock()
}

func numericID(id *jsonrpc.RequestID) (int64, bool) {
	n, ok := id.Value().(int64)
	return n, ok
}

// Len returns the number of calls currently pending.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close rejects all pending calls with err and makes later Begin calls fail
// with it. Only the first Close has an effect.
func (t *Table) Close(err error) {
	if err == nil {
		err = ErrTableClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.closeErr = err
	for key, c := range t.pending {
		delete(t.pending, key)
		c.ch <- outcome{err: err}
	}
}
