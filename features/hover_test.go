package features

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/provider"
)

func TestHover_RequestThroughRegisteredProvider(t *testing.T) {
	t.Parallel()

	reg := provider.NewRegistry[HoverProvider]()
	s, p := startSession(t, environment.NewStore(environment.Empty))
	h := NewHover(reg, WithHoverPolicy(Timeout(2*time.Second)))
	if err := s.RegisterFeature(h); err != nil {
		t.Fatal(err)
	}

	providers := reg.For(lsp.TextDocumentItem{URI: "file#a.go", LanguageID: "go"})
	if len(providers) != 1 {
		t.Fatalf("expected one provider, got %d", len(providers))
	}

	type result struct {
		hover *lsp.Hover
		err   error
	}
	done := make(chan result, 1)
	go func() {
		hv, err := providers[0](context.Background(), lsp.HoverParams{
			TextDocument: lsp.TextDocumentIdentifier{URI: "file#a.go"},
			Position:     lsp.Position{Line: 23, Character: 5},
		})
		done <- result{hv, err}
	}()

	var params lsp.HoverParams
	req := p.expect(lsp.HoverMethod, &params)
	if req.ID.String() != "1" {
		t.Fatalf("hover id %s", req.ID)
	}
	if params.Position.Line != 23 || params.Position.Character != 5 {
		t.Fatalf("params %+v", params)
	}
	p.write(`{"jsonrpc":"2.0","id":1,"result":{"contents":"docstring"}}`)

	r := <-done
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.hover.Text() != "docstring" {
		t.Fatalf("hover %s", r.hover.Contents)
	}

	// A null result is not an error.
	go func() {
		hv, err := h.Hover(context.Background(), lsp.HoverParams{})
		done <- result{hv, err}
	}()
	req = p.expect(lsp.HoverMethod, nil)
	p.respond(req.ID, nil)
	if r := <-done; r.err != nil || r.hover != nil {
		t.Fatalf("null hover: %+v", r)
	}

	h.Deinitialize()
	if len(reg.Entries()) != 0 {
		t.Fatalf("provider not removed")
	}
	if _, err := h.Hover(context.Background(), lsp.HoverParams{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("hover after deinitialize: %v", err)
	}
}
