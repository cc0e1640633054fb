// Package environment holds the client-visible state (open document,
// selections, visible ranges) that Features synchronize to the remote peer.
//
// An Environment is an immutable snapshot. Every change publishes a new value
// through a Store; nothing mutates a published Environment in place.
package environment

import (
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/observable"
)

// Environment is a snapshot of the client state.
type Environment struct {
	// Component is the active editor component, or nil when nothing is open.
	Component *Component `json:"component"`
}

// Component describes the document currently shown to the user.
type Component struct {
	Document      lsp.TextDocumentItem `json:"document"`
	Selections    []lsp.Selection      `json:"selections"`
	VisibleRanges []lsp.Range          `json:"visibleRanges"`
}

// Empty is the Environment with no open component.
var Empty = Environment{}

// DocumentURI returns the URI of the open document, or "" when none is open.
func (e Environment) DocumentURI() lsp.DocumentURI {
	if e.Component == nil {
		return ""
	}
	return e.Component.Document.URI
}

// WithComponent returns a copy of e with its component replaced.
func (e Environment) WithComponent(c *Component) Environment {
	e.Component = c
	return e
}

// Store is the observable holder of the current Environment. It is shared
// between the code that drives the UI and any number of Sessions.
//
// The store does not deduplicate: publishing an equal value notifies every
// observer again. Features that only care about document identity compare
// DocumentURI themselves.
type Store struct {
	subj *observable.Subject[Environment]
}

// NewStore returns a Store holding initial.
func NewStore(initial Environment) *Store {
	return &Store{subj: observable.NewSubject(initial)}
}

// Value returns the current Environment.
func (s *Store) Value() Environment { return s.subj.Value() }

// Next publishes a new Environment, fully replacing the previous one.
func (s *Store) Next(env Environment) { s.subj.Next(env) }

// Subscribe registers fn to receive the current Environment immediately and
// every later one in publish order until the returned function is called.
func (s *Store) Subscribe(fn func(Environment)) (unsubscribe func()) {
	return s.subj.Subscribe(fn)
}
