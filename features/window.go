package features

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ggoodman/langclient-go/connection"
	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/session"
)

// Window routes window/logMessage and window/showMessage notifications into
// the Session's logger. ShowMessage, when set, additionally receives every
// showMessage notification.
type Window struct {
	ShowMessage func(lsp.LogMessageParams)

	mu      sync.Mutex
	cleanup []func()
}

func (w *Window) Name() string { return "window" }

func (w *Window) Initialize(s *session.Session, _ environment.Environment) error {
	log := s.Logger()
	unlog, err := s.OnNotification(lsp.LogMessageNotificationMethod,
		connection.HandleNotification(func(ctx context.Context, p lsp.LogMessageParams) error {
			log.Log(logContext(ctx, s, w.Name()), messageLevel(p.Type), p.Message, slog.String("source", "server"))
			return nil
		}))
	if err != nil {
		return err
	}
	unshow, err := s.OnNotification(lsp.ShowMessageNotificationMethod,
		connection.HandleNotification(func(ctx context.Context, p lsp.LogMessageParams) error {
			log.Log(logContext(ctx, s, w.Name()), messageLevel(p.Type), p.Message, slog.String("source", "server"), slog.Bool("show", true))
			if w.ShowMessage != nil {
				w.ShowMessage(p)
			}
			return nil
		}))
	if err != nil {
		unlog()
		return err
	}

	w.mu.Lock()
	w.cleanup = []func(){unlog, unshow}
	w.mu.Unlock()
	return nil
}

func messageLevel(t lsp.MessageType) slog.Level {
	switch t {
	case lsp.MessageError:
		return slog.LevelError
	case lsp.MessageWarning:
		return slog.LevelWarn
	case lsp.MessageInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func (w *Window) Deinitialize() {
	w.mu.Lock()
	cleanup := w.cleanup
	w.cleanup = nil
	w.mu.Unlock()
	for _, fn := range cleanup {
		fn()
	}
}
