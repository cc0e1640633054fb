package connection

import (
	"errors"
	"fmt"

	"github.com/ggoodman/langclient-go/internal/jsonrpc"
)

var (
	// ErrProtocol marks malformed traffic and handler-table conflicts.
	ErrProtocol = errors.New("protocol error")
	// ErrDuplicateHandler is returned when a method already has a handler.
	ErrDuplicateHandler = fmt.Errorf("%w: handler already registered", ErrProtocol)
	// ErrConnectionClosed is returned for operations on, or orphaned by, a
	// closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrTransport wraps I/O failures reported by the transport.
	ErrTransport = errors.New("transport error")
	// ErrMisuse marks API contract violations.
	ErrMisuse = errors.New("misuse")
)

// ErrorCode is a JSON-RPC error code.
type ErrorCode = jsonrpc.ErrorCode

const (
	CodeParseError           = jsonrpc.ErrorCodeParseError
	CodeInvalidRequest       = jsonrpc.ErrorCodeInvalidRequest
	CodeMethodNotFound       = jsonrpc.ErrorCodeMethodNotFound
	CodeInvalidParams        = jsonrpc.ErrorCodeInvalidParams
	CodeInternalError        = jsonrpc.ErrorCodeInternalError
	CodeServerNotInitialized = jsonrpc.ErrorCodeServerNotInitialized
	CodeRequestCancelled     = jsonrpc.ErrorCodeRequestCancelled
)

// RemoteError is an error object carried by a Response. Call returns it when
// the peer answers with an error; request handlers may return one to control
// the error sent back.
type RemoteError struct {
	Code    ErrorCode
	Message string
	Data    any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// NewRemoteError builds a RemoteError with no data.
func NewRemoteError(code ErrorCode, format string, args ...any) *RemoteError {
	return &RemoteError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func transportFailure(cause error) error {
	return fmt.Errorf("%w: %w: %w", ErrConnectionClosed, ErrTransport, cause)
}
