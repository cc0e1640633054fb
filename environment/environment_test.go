package environment

import (
	"testing"

	"github.com/ggoodman/langclient-go/lsp"
)

func doc(uri string) Environment {
	return Empty.WithComponent(&Component{Document: lsp.TextDocumentItem{URI: lsp.DocumentURI(uri), LanguageID: "go"}})
}

func TestStore_LateSubscriberNeverSeesOldValues(t *testing.T) {
	t.Parallel()

	e0, e1, e2 := Empty, doc("file:///a.go"), doc("file:///b.go")
	s := NewStore(e0)
	s.Next(e1)

	var got []lsp.DocumentURI
	unsub := s.Subscribe(func(e Environment) { got = append(got, e.DocumentURI()) })
	defer unsub()
	s.Next(e2)

	if len(got) != 2 || got[0] != "file:///a.go" || got[1] != "file:///b.go" {
		t.Fatalf("unexpected sequence: %v", got)
	}
}

func TestStore_NoDeduplication(t *testing.T) {
	t.Parallel()

	s := NewStore(doc("file:///a.go"))
	n := 0
	s.Subscribe(func(Environment) { n++ })
	s.Next(s.Value())
	s.Next(s.Value())
	if n != 3 {
		t.Fatalf("expected 3 deliveries, got %d", n)
	}
}

func TestEnvironment_DocumentURI(t *testing.T) {
	t.Parallel()

	if Empty.DocumentURI() != "" {
		t.Fatalf("empty environment should have no document")
	}
	if doc("file:///x").DocumentURI() != "file:///x" {
		t.Fatalf("unexpected uri")
	}
}
