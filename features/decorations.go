package features

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/langclient-go/connection"
	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/observable"
	"github.com/ggoodman/langclient-go/provider"
	"github.com/ggoodman/langclient-go/session"
	"golang.org/x/time/rate"
)

// DecorationsProvider returns the decorations known for a document.
type DecorationsProvider func(ctx context.Context, params lsp.TextDocumentDecorationsParams) ([]lsp.TextDocumentDecoration, error)

// DecorationsUpdate is published whenever a document's decorations change.
type DecorationsUpdate struct {
	URI         lsp.DocumentURI
	Decorations []lsp.TextDocumentDecoration
}

// Decorations fetches decorations for the open document and applies
// decorations pushed by the peer. Fetches are rate limited.
type Decorations struct {
	registry provider.Registerer[DecorationsProvider]
	selector lsp.DocumentSelector
	limiter  *rate.Limiter
	policy   RequestPolicy

	updates *observable.Subject[DecorationsUpdate]

	mu         sync.Mutex
	s          *session.Session
	req        Requester
	cache      map[lsp.DocumentURI][]lsp.TextDocumentDecoration
	lastURI    lsp.DocumentURI
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	cleanup    []func()
	registered bool
}

// DecorationsOption configures Decorations.
type DecorationsOption func(*Decorations)

// WithDecorationsRate limits document-change fetches to r per second with the
// given burst.
func WithDecorationsRate(r rate.Limit, burst int) DecorationsOption {
	return func(d *Decorations) { d.limiter = rate.NewLimiter(r, burst) }
}

// WithDecorationsSelector scopes fetches and the registered provider.
func WithDecorationsSelector(sel lsp.DocumentSelector) DecorationsOption {
	return func(d *Decorations) { d.selector = sel }
}

// WithDecorationsPolicy layers p over outbound decoration requests.
func WithDecorationsPolicy(p RequestPolicy) DecorationsOption {
	return func(d *Decorations) { d.policy = p }
}

// NewDecorations returns a Decorations feature registering into reg.
func NewDecorations(reg provider.Registerer[DecorationsProvider], opts ...DecorationsOption) *Decorations {
	if reg == nil {
		reg = provider.Noop[DecorationsProvider]{}
	}
	d := &Decorations{
		registry: reg,
		limiter:  rate.NewLimiter(rate.Every(250*time.Millisecond), 2),
		updates:  observable.NewSubject(DecorationsUpdate{}),
		cache:    make(map[lsp.DocumentURI][]lsp.TextDocumentDecoration),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Decorations) Name() string { return "decorations" }

// Updates publishes every decorations change, fetched or pushed.
func (d *Decorations) Updates() *observable.Subject[DecorationsUpdate] { return d.updates }

func (d *Decorations) Initialize(s *session.Session, _ environment.Environment) error {
	unpush, err := s.OnNotification(lsp.PublishDecorationsNotificationMethod,
		connection.HandleNotification(func(ctx context.Context, p lsp.PublishDecorationsParams) error {
			d.store(p.TextDocument.URI, p.Decorations)
			return nil
		}))
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.s = s
	d.req = applyPolicy(s, d.policy)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.cleanup = append(d.cleanup, unpush, d.registry.Register(d.selector, d.Decorations))
	d.registered = true
	d.mu.Unlock()

	unsub := s.Environment().Subscribe(d.onEnvironment)
	d.mu.Lock()
	d.cleanup = append(d.cleanup, unsub)
	d.mu.Unlock()
	return nil
}

func (d *Decorations) onEnvironment(env environment.Environment) {
	if env.Component == nil || !d.selector.Matches(env.Component.Document) {
		return
	}
	uri := env.Component.Document.URI

	d.mu.Lock()
	if !d.registered || uri == d.lastURI {
		d.mu.Unlock()
		return
	}
	d.lastURI = uri
	ctx := d.ctx
	d.wg.Add(1)
	d.mu.Unlock()

	// Fetch off the publisher's goroutine.
	go func() {
		defer d.wg.Done()
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		if _, err := d.fetch(ctx, uri); err != nil && ctx.Err() == nil {
			d.mu.Lock()
			s := d.s
			d.mu.Unlock()
			if s != nil {
				s.Logger().WarnContext(logContext(ctx, s, d.Name()), "features.decorations.fetch.fail",
					slog.String("uri", string(uri)), slog.String("err", err.Error()))
			}
		}
	}()
}

func (d *Decorations) fetch(ctx context.Context, uri lsp.DocumentURI) ([]lsp.TextDocumentDecoration, error) {
	d.mu.Lock()
	req := d.req
	d.mu.Unlock()
	if req == nil {
		return nil, ErrNotInitialized
	}

	var out []lsp.TextDocumentDecoration
	params := lsp.TextDocumentDecorationsParams{TextDocument: lsp.TextDocumentIdentifier{URI: uri}}
	if err := req.SendRequest(ctx, lsp.DecorationsMethod, params, &out); err != nil {
		return nil, err
	}
	d.store(uri, out)
	return out, nil
}

func (d *Decorations) store(uri lsp.DocumentURI, decs []lsp.TextDocumentDecoration) {
	d.mu.Lock()
	if !d.registered {
		d.mu.Unlock()
		return
	}
	d.cache[uri] = decs
	d.mu.Unlock()
	d.updates.Next(DecorationsUpdate{URI: uri, Decorations: decs})
}

// Cached returns the last known decorations for uri.
func (d *Decorations) Cached(uri lsp.DocumentURI) ([]lsp.TextDocumentDecoration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	decs, ok := d.cache[uri]
	return decs, ok
}

// Decorations returns cached decorations for the document, fetching them
// from the peer on a miss.
func (d *Decorations) Decorations(ctx context.Context, params lsp.TextDocumentDecorationsParams) ([]lsp.TextDocumentDecoration, error) {
	if decs, ok := d.Cached(params.TextDocument.URI); ok {
		return decs, nil
	}
	return d.fetch(ctx, params.TextDocument.URI)
}

func (d *Decorations) Deinitialize() {
	d.mu.Lock()
	cleanup := d.cleanup
	cancel := d.cancel
	d.cleanup = nil
	d.cancel = nil
	d.registered = false
	d.req = nil
	d.s = nil
	d.lastURI = ""
	d.cache = make(map[lsp.DocumentURI][]lsp.TextDocumentDecoration)
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, fn := range cleanup {
		fn()
	}
	d.wg.Wait()
}
