package features

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/session"
)

// DidOpen tells the peer which document is open. Every time the open
// document changes identity it sends didClose for the previous one (if it
// was announced) and didOpen for the new one (if it matches the selector).
type DidOpen struct {
	selector lsp.DocumentSelector

	mu      sync.Mutex
	s       *session.Session
	unsub   func()
	current *lsp.TextDocumentItem
}

// NewDidOpen returns a DidOpen feature for documents matching sel. An empty
// selector matches every document.
func NewDidOpen(sel lsp.DocumentSelector) *DidOpen {
	return &DidOpen{selector: sel}
}

func (f *DidOpen) Name() string { return "didOpen" }

func (f *DidOpen) Initialize(s *session.Session, _ environment.Environment) error {
	f.mu.Lock()
	f.s = s
	f.mu.Unlock()

	// The subscription replays the current environment immediately.
	unsub := s.Environment().Subscribe(f.onEnvironment)

	f.mu.Lock()
	f.unsub = unsub
	f.mu.Unlock()
	return nil
}

func (f *DidOpen) onEnvironment(env environment.Environment) {
	f.mu.Lock()
	s := f.s
	prev := f.current
	if s == nil {
		f.mu.Unlock()
		return
	}

	var next *lsp.TextDocumentItem
	if env.Component != nil && f.selector.Matches(env.Component.Document) {
		doc := env.Component.Document
		next = &doc
	}
	if sameDocument(prev, next) {
		f.mu.Unlock()
		return
	}
	f.current = next
	f.mu.Unlock()

	ctx := logContext(context.Background(), s, f.Name())
	if prev != nil {
		params := lsp.DidCloseTextDocumentParams{TextDocument: lsp.TextDocumentIdentifier{URI: prev.URI}}
		if err := s.SendNotification(ctx, lsp.DidCloseNotificationMethod, params); err != nil {
			s.Logger().WarnContext(ctx, "features.didclose.fail", slog.String("uri", string(prev.URI)), slog.String("err", err.Error()))
		}
	}
	if next != nil {
		if err := s.SendNotification(ctx, lsp.DidOpenNotificationMethod, lsp.DidOpenTextDocumentParams{TextDocument: *next}); err != nil {
			s.Logger().WarnContext(ctx, "features.didopen.fail", slog.String("uri", string(next.URI)), slog.String("err", err.Error()))
		}
	}
}

func sameDocument(a, b *lsp.TextDocumentItem) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.URI == b.URI
}

func (f *DidOpen) Deinitialize() {
	f.mu.Lock()
	unsub := f.unsub
	f.unsub = nil
	f.s = nil
	f.current = nil
	f.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
