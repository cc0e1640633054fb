// Package logctx decorates slog records with attributes carried on the
// context: the session, the RPC message being handled and the Feature doing
// the work.
package logctx

import (
	"context"
	"log/slog"
)

type Handler struct {
	slog.Handler
}

// New wraps h, or the default logger's handler when h is nil.
func New(h slog.Handler) Handler {
	if h == nil {
		h = slog.Default().Handler()
	}
	if inner, ok := h.(Handler); ok {
		return inner
	}
	return Handler{Handler: h}
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		r.AddAttrs(slog.Group("sess",
			slog.String("id", sd.SessionID),
			slog.String("state", sd.State),
		))
	}

	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	if fd, ok := ctx.Value(featureDataKey{}).(*FeatureData); ok {
		r.AddAttrs(slog.Group("feature",
			slog.String("name", fd.Name),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type rpcMsg struct{}

type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type sessionDataKey struct{}

type SessionData struct {
	SessionID string
	State     string
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}

type featureDataKey struct{}

type FeatureData struct {
	Name string
}

func WithFeatureData(ctx context.Context, data *FeatureData) context.Context {
	return context.WithValue(ctx, featureDataKey{}, data)
}
