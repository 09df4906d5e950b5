package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jigna-sync/jigna-go/pkg/channel"
	"github.com/jigna-sync/jigna-go/pkg/dispatch"
	"github.com/jigna-sync/jigna-go/pkg/model"
	"github.com/jigna-sync/jigna-go/pkg/registry"
	"github.com/jigna-sync/jigna-go/pkg/session"
)

// Binding pairs a model with the view that exposes it. A nil View exposes
// every attribute.
type Binding struct {
	Model *model.Model
	View  *registry.View
}

// Bind exposes the named attributes of m, or all of them when no names
// are given.
func Bind(m *model.Model, names ...string) Binding {
	return Binding{Model: m, View: registry.NewView(m, names...)}
}

// Attachable is a transport that needs the session handler, such as the
// Redis relay.
type Attachable interface {
	session.Transport
	Bind(h session.Handler)
}

// AppConfig configures an App.
type AppConfig struct {
	Server   Config
	Channel  channel.Config
	Session  session.Config
	Dispatch dispatch.Config

	// Renderer renders the bootstrap page. Nil uses DefaultRenderer.
	Renderer Renderer

	// Transports receive notifications alongside the websocket channel.
	Transports []Attachable
}

// DefaultAppConfig returns the default application configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server:   DefaultConfig(),
		Channel:  channel.DefaultConfig(),
		Dispatch: dispatch.DefaultConfig(),
	}
}

// App wires a registry, dispatch loop, session, websocket channel and
// HTTP server together.
type App struct {
	Registry *registry.Registry
	Loop     *dispatch.Loop
	Session  *session.Session
	Channel  *channel.Channel
	Server   *Server

	ready chan struct{}
}

// Build registers the bindings and their reachable models and assembles
// the components. Nothing runs until Run.
func Build(cfg AppConfig, bindings ...Binding) (*App, error) {
	reg := registry.New()
	for _, b := range bindings {
		if b.Model == nil {
			return nil, fmt.Errorf("%w: binding without model", ErrInvalidConfig)
		}
		if _, err := reg.RegisterTree(b.Model, b.View); err != nil {
			return nil, err
		}
	}

	loop, err := dispatch.New(cfg.Dispatch)
	if err != nil {
		return nil, err
	}
	ch, err := channel.New(cfg.Channel)
	if err != nil {
		return nil, err
	}

	var transport session.Transport = ch
	if len(cfg.Transports) > 0 {
		multi := session.MultiTransport{ch}
		for _, t := range cfg.Transports {
			multi = append(multi, t)
		}
		transport = multi
	}

	sess, err := session.New(reg, transport, loop, cfg.Session)
	if err != nil {
		return nil, err
	}
	ch.Bind(sess)
	for _, t := range cfg.Transports {
		t.Bind(sess)
	}

	srv, err := New(cfg.Server, sess, ch, cfg.Renderer)
	if err != nil {
		return nil, err
	}

	return &App{
		Registry: reg,
		Loop:     loop,
		Session:  sess,
		Channel:  ch,
		Server:   srv,
		ready:    make(chan struct{}),
	}, nil
}

// Run starts the dispatch loop and the session, then serves on l (or the
// configured address when l is nil) until ctx is done or the session
// fails. Everything is shut down before Run returns.
func (a *App) Run(ctx context.Context, l net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.Loop.Run(ctx) }()
	defer func() {
		a.Loop.Stop()
		<-loopDone
	}()

	if err := a.Session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer a.Session.Close()
	close(a.ready)

	serveDone := make(chan error, 1)
	go func() {
		if l != nil {
			serveDone <- a.Server.Serve(l)
			return
		}
		serveDone <- a.Server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case <-a.Session.Done():
		runErr = a.Session.Err()
	case err := <-serveDone:
		serveDone <- err
		runErr = err
	}

	shutdownErr := a.Server.Shutdown(context.Background())
	if err := <-serveDone; err != nil && runErr == nil {
		runErr = err
	}
	if runErr == nil && shutdownErr != nil && !errors.Is(shutdownErr, context.DeadlineExceeded) {
		runErr = shutdownErr
	}
	return runErr
}

// Ready is closed once Run has started the session. Transports that
// connect themselves, such as the Redis relay, wait for it.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Serve builds an App for the bindings and runs it on the configured
// address until ctx is done.
func Serve(ctx context.Context, cfg AppConfig, bindings ...Binding) error {
	app, err := Build(cfg, bindings...)
	if err != nil {
		return err
	}
	return app.Run(ctx, nil)
}
