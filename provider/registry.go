// Package provider holds registries through which Features expose
// capabilities (hover, decorations, ...) to the rest of the client. A Feature
// registers a provider while it is initialized and removes it on
// Deinitialize; consumers look providers up by document.
package provider

import (
	"sync"

	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/observable"
)

// Registerer accepts providers scoped to a document selector.
type Registerer[P any] interface {
	Register(sel lsp.DocumentSelector, p P) (unregister func())
}

// Entry is one registered provider.
type Entry[P any] struct {
	Selector lsp.DocumentSelector
	Provider P

	id uint64
}

// Registry is a concurrency-safe, observable set of providers.
type Registry[P any] struct {
	mu      sync.Mutex
	nextID  uint64
	entries []Entry[P]
	changes *observable.Subject[[]Entry[P]]
}

// NewRegistry returns an empty Registry.
func NewRegistry[P any]() *Registry[P] {
	return &Registry[P]{changes: observable.NewSubject[[]Entry[P]](nil)}
}

// Register adds p. The returned func removes it and is safe to call more
// than once.
func (r *Registry[P]) Register(sel lsp.DocumentSelector, p P) (unregister func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, Entry[P]{Selector: sel, Provider: p, id: id})
	r.mu.Unlock()
	r.publish()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			for i, e := range r.entries {
				if e.id == id {
					r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
					break
				}
			}
			r.mu.Unlock()
			r.publish()
		})
	}
}

// publish snapshots inside Update so concurrent changes cannot publish a
// stale view last.
func (r *Registry[P]) publish() {
	r.changes.Update(func([]Entry[P]) ([]Entry[P], bool) {
		return r.Entries(), true
	})
}

func (r *Registry[P]) snapshotLocked() []Entry[P] {
	return append([]Entry[P](nil), r.entries...)
}

// Entries returns the registered providers in registration order.
func (r *Registry[P]) Entries() []Entry[P] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// For returns the providers whose selector matches doc.
func (r *Registry[P]) For(doc lsp.TextDocumentItem) []P {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []P
	for _, e := range r.entries {
		if e.Selector.Matches(doc) {
			out = append(out, e.Provider)
		}
	}
	return out
}

// Changes publishes a snapshot of the entries after every change.
func (r *Registry[P]) Changes() *observable.Subject[[]Entry[P]] { return r.changes }

// Noop discards registrations.
type Noop[P any] struct{}

func (Noop[P]) Register(lsp.DocumentSelector, P) func() { return func() {} }

var (
	_ Registerer[int] = (*Registry[int])(nil)
	_ Registerer[int] = Noop[int]{}
)
