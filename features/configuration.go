package features

import (
	"context"
	"strings"
	"sync"

	"github.com/ggoodman/langclient-go/connection"
	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/session"
)

// Configuration answers workspace/configuration requests from a static
// settings tree. Sections are dotted paths into the tree; an empty section
// returns the whole tree and a missing one returns null.
type Configuration struct {
	settings map[string]any

	mu         sync.Mutex
	unregister func()
}

// NewConfiguration serves settings.
func NewConfiguration(settings map[string]any) *Configuration {
	return &Configuration{settings: settings}
}

func (c *Configuration) Name() string { return "configuration" }

func (c *Configuration) Initialize(s *session.Session, _ environment.Environment) error {
	unregister, err := s.OnRequest(lsp.ConfigurationMethod,
		connection.HandleRequest(func(ctx context.Context, p lsp.ConfigurationParams) ([]any, error) {
			out := make([]any, len(p.Items))
			for i, item := range p.Items {
				out[i] = c.Lookup(item.Section)
			}
			return out, nil
		}))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.unregister = unregister
	c.mu.Unlock()
	return nil
}

// Lookup resolves a dotted section path.
func (c *Configuration) Lookup(section string) any {
	if section == "" {
		return c.settings
	}
	var cur any = c.settings
	for _, part := range strings.Split(section, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[part]; !ok {
			return nil
		}
	}
	return cur
}

func (c *Configuration) Deinitialize() {
	c.mu.Lock()
	unregister := c.unregister
	c.unregister = nil
	c.mu.Unlock()
	if unregister != nil {
		unregister()
	}
}
