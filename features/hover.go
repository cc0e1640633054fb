package features

import (
	"context"
	"fmt"
	"sync"

	"github.com/ggoodman/langclient-go/connection"
	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/provider"
	"github.com/ggoodman/langclient-go/session"
)

// ErrNotInitialized is returned by Feature helpers used outside the
// Initialize/Deinitialize window.
var ErrNotInitialized = fmt.Errorf("%w: feature not initialized", connection.ErrMisuse)

// HoverProvider answers hover queries for a document position.
type HoverProvider func(ctx context.Context, params lsp.HoverParams) (*lsp.Hover, error)

// Hover issues textDocument/hover requests and, while initialized, exposes
// them as a HoverProvider in a registry.
type Hover struct {
	registry provider.Registerer[HoverProvider]
	selector lsp.DocumentSelector
	policy   RequestPolicy

	mu         sync.Mutex
	req        Requester
	unregister func()
}

// HoverOption configures Hover.
type HoverOption func(*Hover)

// WithHoverSelector scopes the registered provider.
func WithHoverSelector(sel lsp.DocumentSelector) HoverOption {
	return func(h *Hover) { h.selector = sel }
}

// WithHoverPolicy layers p over outbound hover requests.
func WithHoverPolicy(p RequestPolicy) HoverOption {
	return func(h *Hover) { h.policy = p }
}

// NewHover returns a Hover feature registering into reg. A nil reg discards
// the provider.
func NewHover(reg provider.Registerer[HoverProvider], opts ...HoverOption) *Hover {
	if reg == nil {
		reg = provider.Noop[HoverProvider]{}
	}
	h := &Hover{registry: reg}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Hover) Name() string { return "hover" }

func (h *Hover) Initialize(s *session.Session, _ environment.Environment) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.req = applyPolicy(s, h.policy)
	h.unregister = h.registry.Register(h.selector, h.Hover)
	return nil
}

// Hover asks the peer for hover information. A null result yields a nil
// Hover and no error.
func (h *Hover) Hover(ctx context.Context, params lsp.HoverParams) (*lsp.Hover, error) {
	h.mu.Lock()
	req := h.req
	h.mu.Unlock()
	if req == nil {
		return nil, ErrNotInitialized
	}

	var out *lsp.Hover
	if err := req.SendRequest(ctx, lsp.HoverMethod, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Hover) Deinitialize() {
	h.mu.Lock()
	unregister := h.unregister
	h.unregister = nil
	h.req = nil
	h.mu.Unlock()
	if unregister != nil {
		unregister()
	}
}
