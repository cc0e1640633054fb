package session

import (
	"log/slog"

	"github.com/ggoodman/langclient-go/connection"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/metrics"
)

// Option customizes a Session.
type Option func(*Session)

// WithLogger overrides the logger. It is also handed to the Connection.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records connection traffic into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithConnectionOptions appends options used when constructing the
// Connection.
func WithConnectionOptions(opts ...connection.Option) Option {
	return func(s *Session) {
		s.connOpts = append(s.connOpts, opts...)
	}
}

// WithInitialize enables the LSP lifecycle handshake: an initialize request
// and initialized notification on Start, shutdown and exit on Stop.
func WithInitialize(params lsp.InitializeParams) Option {
	return func(s *Session) {
		p := params
		s.handshake = &p
	}
}
