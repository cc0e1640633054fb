package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/langclient-go/internal/jsonrpc"
)

// Framing selects how messages are delimited on a byte stream.
type Framing int

const (
	// LineFraming writes one JSON document per line.
	LineFraming Framing = iota
	// HeaderFraming uses the LSP base protocol: a Content-Length header block
	// followed by the JSON body.
	HeaderFraming
)

// ParseFraming maps a configuration string ("line" or "header") to a Framing.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "header", "lsp":
		return HeaderFraming, nil
	case "line", "ndjson":
		return LineFraming, nil
	default:
		return 0, fmt.Errorf("unknown framing %q", s)
	}
}

// maxMessageSize bounds a single framed body.
const maxMessageSize = 64 << 20

var acceptedMediaTypes = []contenttype.MediaType{
	contenttype.NewMediaType("application/vscode-jsonrpc"),
	contenttype.NewMediaType("application/json"),
}

// Stream is a Transport over a byte stream such as a child process's stdio
// or a TCP connection.
type Stream struct {
	framing Framing

	r *bufio.Reader

	wmu sync.Mutex
	w   *bufio.Writer

	c      io.Closer
	closed atomic.Bool
}

// NewStream returns a Transport reading from r and writing to w. c, when
// non-nil, is closed by Close and should unblock a pending read.
func NewStream(r io.Reader, w io.Writer, c io.Closer, framing Framing) *Stream {
	return &Stream{
		framing: framing,
		r:       bufio.NewReaderSize(r, 64*1024),
		w:       bufio.NewWriter(w),
		c:       c,
	}
}

// Write frames and flushes msg. Writes are serialized in call order.
func (s *Stream) Write(ctx context.Context, msg jsonrpc.Message) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	switch s.framing {
	case HeaderFraming:
		if _, err := fmt.Fprintf(s.w, "Content-Length: %d\r\n\r\n", len(msg)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if _, err := s.w.Write(msg); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	default:
		if bytes.ContainsAny(msg, "\r\n") {
			msg = bytes.ReplaceAll(bytes.ReplaceAll(msg, []byte("\r"), nil), []byte("\n"), nil)
		}
		if _, err := s.w.Write(msg); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		if err := s.w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write delimiter: %w", err)
		}
	}
	return s.w.Flush()
}

// Read returns the next framed message. It returns io.EOF when the stream
// ends cleanly.
func (s *Stream) Read(ctx context.Context) (jsonrpc.Message, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var (
		msg jsonrpc.Message
		err error
	)
	if s.framing == HeaderFraming {
		msg, err = s.readHeaderFramed()
	} else {
		msg, err = s.readLine()
	}
	if err != nil && s.closed.Load() {
		return nil, ErrClosed
	}
	return msg, err
}

func (s *Stream) readLine() (jsonrpc.Message, error) {
	for {
		line, err := s.r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			// A final unterminated line is still a message.
			return jsonrpc.Message(line), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *Stream) readHeaderFramed() (jsonrpc.Message, error) {
	contentLength := -1
	sawHeader := false
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && !sawHeader && strings.TrimSpace(line) == "" {
				return nil, io.EOF
			}
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if !sawHeader {
				continue
			}
			break
		}
		sawHeader = true

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "content-length":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid Content-Length %q", value)
			}
			contentLength = n
		case "content-type":
			if !acceptableContentType(value) {
				return nil, fmt.Errorf("unsupported Content-Type %q", value)
			}
		}
	}

	if contentLength < 0 {
		return nil, errors.New("missing Content-Length header")
	}
	if contentLength > maxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit", contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return jsonrpc.Message(body), nil
}

func acceptableContentType(value string) bool {
	mt := contenttype.NewMediaType(value)
	if mt.Type == "" {
		return false
	}
	for _, accepted := range acceptedMediaTypes {
		if mt.Matches(accepted) {
			return true
		}
	}
	return false
}

// Close closes the underlying closer. It is safe to call more than once.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

var _ Transport = (*Stream)(nil)
