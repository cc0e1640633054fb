// Package transport defines the duplex message channel a Connection runs
// over, plus stream-based and in-memory implementations.
//
// A Transport moves whole JSON-RPC messages; framing is the transport's
// concern. Implementations must preserve message order in each direction and
// report disconnects from Read (io.EOF for an orderly close).
package transport

import (
	"context"
	"errors"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
)

// ErrClosed is returned by operations on a transport closed locally.
var ErrClosed = errors.New("transport closed")

// Transport is a duplex, ordered channel of JSON-RPC messages. Write may be
// called concurrently with Read. Read is only ever called from one goroutine;
// implementations may ignore ctx on Read as long as Close unblocks it.
type Transport interface {
	Write(ctx context.Context, msg jsonrpc.Message) error
	Read(ctx context.Context) (jsonrpc.Message, error)
	Close() error
}

// Factory opens a new Transport. It is invoked once per Session start.
type Factory func(ctx context.Context) (Transport, error)

// Static returns a Factory that hands out t exactly once.
func Static(t Transport) Factory {
	used := false
	return func(ctx context.Context) (Transport, error) {
		if used {
			return nil, errors.New("transport already handed out")
		}
		used = true
		return t, nil
	}
}
