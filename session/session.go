// Package session manages the lifecycle of one JSON-RPC Connection and the
// Features attached to it.
//
// A Session moves forward through New, Connecting, Running, Closing and
// Closed. Features registered before Start are initialized, in registration
// order, once the Session is Running; Features registered later are
// initialized immediately. Stop deinitializes them in reverse order.
//
// Sessions are independent: a process may run any number of them, each with
// its own transport factory, sharing an environment.Store or not.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ggoodman/langclient-go/connection"
	"github.com/ggoodman/langclient-go/environment"
	"github.com/ggoodman/langclient-go/internal/logctx"
	"github.com/ggoodman/langclient-go/lsp"
	"github.com/ggoodman/langclient-go/metrics"
	"github.com/ggoodman/langclient-go/observable"
	"github.com/ggoodman/langclient-go/transport"
	"github.com/google/uuid"
)

type featureSlot struct {
	f           Feature
	initialized bool
	done        bool
}

// Session owns one Connection and an ordered list of Features.
type Session struct {
	id      string
	factory transport.Factory
	env     *environment.Store
	log     *slog.Logger
	metrics *metrics.Metrics

	connOpts  []connection.Option
	handshake *lsp.InitializeParams

	state *observable.Subject[connection.State]

	mu         sync.Mutex
	conn       *connection.Conn
	started    bool
	stopped    bool
	serverInfo *lsp.InitializeResult

	// featMu serializes Feature lifecycle calls.
	featMu   sync.Mutex
	features []*featureSlot
}

// New constructs a Session. Nothing is opened until Start.
func New(factory transport.Factory, env *environment.Store, opts ...Option) *Session {
	if env == nil {
		env = environment.NewStore(environment.Empty)
	}
	s := &Session{
		id:      uuid.NewString(),
		factory: factory,
		env:     env,
		log:     slog.Default(),
		state:   observable.NewSubject(connection.StateNew),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = slog.New(logctx.New(s.log.Handler()))
	return s
}

// ID is a process-unique identifier used in logs.
func (s *Session) ID() string { return s.id }

// Environment returns the store this Session synchronizes.
func (s *Session) Environment() *environment.Store { return s.env }

// Logger returns the Session's logger for Features to share.
func (s *Session) Logger() *slog.Logger { return s.log }

// State exposes lifecycle transitions. A new subscriber first receives the
// current state.
func (s *Session) State() *observable.Subject[connection.State] { return s.state }

// ServerInfo returns the initialize result when the handshake is enabled and
// has completed.
func (s *Session) ServerInfo() *lsp.InitializeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// Context decorates ctx with this Session's log attributes.
func (s *Session) Context(ctx context.Context) context.Context {
	return logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: s.id, State: s.state.Value().String()})
}

func (s *Session) advance(to connection.State) bool {
	ok := s.state.Update(func(cur connection.State) (connection.State, bool) {
		return to, to > cur
	})
	if ok {
		s.metrics.Transition(to.String())
		s.log.DebugContext(s.Context(context.Background()), "session.state", slog.String("state", to.String()))
	}
	return ok
}

// Start opens the transport and brings the Session to Running. It may be
// called once; a failure to open leaves the Session Closed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	s.advance(connection.StateConnecting)

	t, err := s.factory(ctx)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: open: %w", connection.ErrTransport, err)
	}

	opts := append([]connection.Option{connection.WithLogger(s.log), connection.WithMetrics(s.metrics)}, s.connOpts...)
	conn := connection.New(t, opts...)

	if s.handshake != nil {
		if err := s.initialize(ctx, conn); err != nil {
			_ = conn.Close()
			s.fail()
			return fmt.Errorf("%w: initialize: %w", connection.ErrTransport, err)
		}
	}

	s.mu.Lock()
	if s.stopped {
		// Stop ran while the transport was opening.
		s.mu.Unlock()
		_ = conn.Close()
		s.deinitializeAll(ctx)
		s.advance(connection.StateClosed)
		return connection.ErrConnectionClosed
	}
	s.conn = conn
	s.mu.Unlock()

	s.advance(connection.StateRunning)
	s.log.InfoContext(s.Context(ctx), "session.started")

	s.initializePending()

	go func() {
		<-conn.Done()
		if err := s.Stop(context.Background()); err != nil {
			s.log.Warn("session.teardown.fail", slog.String("err", err.Error()))
		}
	}()
	return nil
}

// fail ends a Start that could not reach Running. Features registered so far
// still get their Deinitialize, since a later Stop is a no-op.
func (s *Session) fail() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.deinitializeAll(context.Background())
	s.advance(connection.StateClosed)
}

func (s *Session) initialize(ctx context.Context, conn *connection.Conn) error {
	var res lsp.InitializeResult
	if err := conn.Call(ctx, string(lsp.InitializeMethod), s.handshake, &res); err != nil {
		return err
	}
	if err := conn.Notify(ctx, string(lsp.InitializedNotificationMethod), struct{}{}); err != nil {
		return err
	}
	s.mu.Lock()
	s.serverInfo = &res
	s.mu.Unlock()
	return nil
}

// initializePending initializes every registered Feature that has not been
// initialized yet, in registration order.
func (s *Session) initializePending() {
	s.featMu.Lock()
	defer s.featMu.Unlock()

	for _, slot := range s.features {
		if !s.running() {
			return
		}
		if slot.initialized {
			continue
		}
		if err := s.initFeature(slot); err != nil {
			s.log.ErrorContext(s.Context(context.Background()), "session.feature.initialize.fail",
				slog.String("feature", featureName(slot.f)), slog.String("err", err.Error()))
		}
	}
}

func (s *Session) initFeature(slot *featureSlot) (err error) {
	slot.initialized = true
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feature %s panicked during initialize: %v", featureName(slot.f), r)
		}
	}()
	return slot.f.Initialize(s, s.env.Value())
}

func (s *Session) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.stopped
}

// RegisterFeature appends f. If the Session is Running, f is initialized
// before RegisterFeature returns and its Initialize error is returned.
func (s *Session) RegisterFeature(f Feature) error {
	if f == nil {
		return fmt.Errorf("%w: nil feature", connection.ErrMisuse)
	}
	s.featMu.Lock()
	defer s.featMu.Unlock()

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	slot := &featureSlot{f: f}
	s.features = append(s.features, slot)
	if !s.running() {
		return nil
	}
	return s.initFeature(slot)
}

func (s *Session) connection() (*connection.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || s.stopped {
		return nil, connection.ErrConnectionClosed
	}
	return s.conn, nil
}

// SendRequest sends a request and decodes its result into result.
func (s *Session) SendRequest(ctx context.Context, method lsp.Method, params, result any) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	return conn.Call(s.Context(ctx), string(method), params, result)
}

// SendNotification sends a notification.
func (s *Session) SendNotification(ctx context.Context, method lsp.Method, params any) error {
	conn, err := s.connection()
	if err != nil {
		return err
	}
	return conn.Notify(s.Context(ctx), string(method), params)
}

// OnRequest registers an inbound request handler on the current Connection.
func (s *Session) OnRequest(method lsp.Method, h connection.RequestHandler) (func(), error) {
	conn, err := s.connection()
	if err != nil {
		return nil, ErrNotRunning
	}
	return conn.OnRequest(string(method), h)
}

// OnNotification registers an inbound notification handler on the current
// Connection.
func (s *Session) OnNotification(method lsp.Method, h connection.NotificationHandler) (func(), error) {
	conn, err := s.connection()
	if err != nil {
		return nil, ErrNotRunning
	}
	return conn.OnNotification(string(method), h)
}

// Stop deinitializes Features in reverse registration order, closes the
// Connection and moves to Closed. Feature failures are logged, never
// returned. Stop is idempotent. Called while Start is still Connecting, Stop
// moves to Closing and returns; Start then closes the new connection and
// reaches Closed. With the handshake enabled it sends shutdown
// and waits for the answer, so it must not be called from a Connection
// handler in that configuration.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	conn := s.conn
	started := s.started
	s.mu.Unlock()

	if !started {
		s.deinitializeAll(ctx)
		s.advance(connection.StateClosed)
		return nil
	}
	if conn == nil {
		// Start is still opening the transport; it closes the connection and
		// moves to Closed once the factory returns.
		s.advance(connection.StateClosing)
		s.deinitializeAll(ctx)
		return nil
	}

	s.advance(connection.StateClosing)
	s.deinitializeAll(ctx)

	if s.handshake != nil && conn.Err() == nil {
		s.shutdown(ctx, conn)
	}
	err := conn.Close()

	s.advance(connection.StateClosed)
	s.log.InfoContext(s.Context(ctx), "session.stopped")
	return err
}

func (s *Session) shutdown(ctx context.Context, conn *connection.Conn) {
	if err := conn.Call(ctx, string(lsp.ShutdownMethod), nil, nil); err != nil {
		s.log.WarnContext(s.Context(ctx), "session.shutdown.fail", slog.String("err", err.Error()))
		return
	}
	if err := conn.Notify(ctx, string(lsp.ExitNotificationMethod), nil); err != nil {
		s.log.WarnContext(s.Context(ctx), "session.exit.fail", slog.String("err", err.Error()))
	}
}

func (s *Session) deinitializeAll(ctx context.Context) {
	s.featMu.Lock()
	defer s.featMu.Unlock()

	for i := len(s.features) - 1; i >= 0; i-- {
		slot := s.features[i]
		if slot.done {
			continue
		}
		slot.done = true
		if err := deinitFeature(slot.f); err != nil {
			s.log.ErrorContext(s.Context(ctx), "session.feature.deinitialize.fail",
				slog.String("feature", featureName(slot.f)), slog.String("err", err.Error()))
		}
	}
}

func deinitFeature(f Feature) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	f.Deinitialize()
	return nil
}
