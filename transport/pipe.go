package transport

import (
	"context"
	"io"
	"sync"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
)

const pipeBuffer = 64

// pipeEnd is one side of an in-memory transport pair.
type pipeEnd struct {
	in  <-chan jsonrpc.Message
	out chan<- jsonrpc.Message

	// done is closed when this end closes; peerDone when the other does.
	done     chan struct{}
	peerDone <-chan struct{}
	once     *sync.Once
}

// Pipe returns two connected in-memory transports. A message written on one
// end is read from the other in write order. After either end closes, the
// other drains what was already buffered and then reads io.EOF.
func Pipe() (Transport, Transport) {
	ab := make(chan jsonrpc.Message, pipeBuffer)
	ba := make(chan jsonrpc.Message, pipeBuffer)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &pipeEnd{in: ba, out: ab, done: aDone, peerDone: bDone, once: &sync.Once{}}
	b := &pipeEnd{in: ab, out: ba, done: bDone, peerDone: aDone, once: &sync.Once{}}
	return a, b
}

func (p *pipeEnd) Write(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return io.ErrClosedPipe
	default:
	}

	cp := make(jsonrpc.Message, len(msg))
	copy(cp, msg)

	select {
	case p.out <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return io.ErrClosedPipe
	}
}

func (p *pipeEnd) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}

	select {
	case msg := <-p.in:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	case <-p.peerDone:
		// Drain anything written before the peer closed.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return nil, io.EOF
		}
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
