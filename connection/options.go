package connection

import (
	"log/slog"

	"github.com/ggoodman/langclient-go/metrics"
)

// Option customizes a Conn.
type Option func(*Conn)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records traffic into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Conn) {
		c.metrics = m
	}
}
