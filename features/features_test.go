package features

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/internal/jsonrpc"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/session"
	"github.com/ggoodman/langclient-go/transport"
)

type peer struct {
	t  *testing.T
	tr transport.Transport
}

func startSession(t *testing.T, store *environment.Store) (*session.Session, *peer) {
	t.Helper()
	a, b := transport.Pipe()
	s := session.New(transport.Static(a), store)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s, &peer{t: t, tr: b}
}

func (p *peer) read() *jsonrpc.AnyMessage {
	p.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	raw, err := p.tr.Read(ctx)
	if err != nil {
		p.t.Fatalf("peer read: %v", err)
	}
	m, err := jsonrpc.Decode(raw)
	if err != nil {
		p.t.Fatal(err)
	}
	return m
}

func (p *peer) expect(method lsp.Method, into any) *jsonrpc.AnyMessage {
	p.t.Helper()
	m := p.read()
	if m.Method != string(method) {
		p.t.Fatalf("expected %s, got %s (%s)", method, m.Method, m.Params)
	}
	if into != nil {
		if err := json.Unmarshal(m.Params, into); err != nil {
			p.t.Fatal(err)
		}
	}
	return m
}

func (p *peer) write(raw string) {
	p.t.Helper()
	if err := p.tr.Write(context.Background(), jsonrpc.Message(raw)); err != nil {
		p.t.Fatal(err)
	}
}

func (p *peer) respond(id *jsonrpc.RequestID, result any) {
	p.t.Helper()
	resp, err := jsonrpc.NewResultResponse(id, result)
	if err != nil {
		p.t.Fatal(err)
	}
	raw, err := jsonrpc.Encode(resp)
	if err != nil {
		p.t.Fatal(err)
	}
	p.write(string(raw))
}

func docEnv(uri lsp.DocumentURI, lang string) environment.Environment {
	return environment.Empty.WithComponent(&environment.Component{
		Document: lsp.TextDocumentItem{URI: uri, LanguageID: lang},
	})
}
