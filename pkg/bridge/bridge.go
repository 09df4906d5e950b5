// Package bridge implements the embedded single-surface transport. The
// hosted UI surface is the only connection; notifications are delivered by
// evaluating a script inside it.
//
// The bridge is the session's transport and the session is the bridge's
// handler:
//
//	b := bridge.New(surface, bridge.Config{})
//	sess, err := session.New(reg, b, loop, session.Config{})
//	if err != nil {
//		return err
//	}
//	b.Bind(sess)
//	if err := sess.Start(ctx); err != nil {
//		return err
//	}
//	// Pushes the full state to the surface.
//	if err := b.Connect(ctx); err != nil {
//		return err
//	}
//
// Messages posted by the page are handed to Receive.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jigna-sync/jigna-go/pkg/session"
	"github.com/jigna-sync/jigna-go/pkg/wire"
)

// ConnID is the connection ID of the hosted surface.
const ConnID session.ConnID = "surface"

// Bridge errors.
var (
	// ErrSurfaceMissing is returned when a notification must be delivered
	// but no surface is attached. It is fatal to the session.
	ErrSurfaceMissing = errors.New("embedded surface missing")

	ErrNoHandler = errors.New("no session handler bound")
)

// Surface is a hosted browser surface able to evaluate scripts.
type Surface interface {
	Evaluate(script string) error
}

// Config configures a Bridge.
type Config struct {
	// Logger is used for operational logging. Nil disables logging.
	Logger *slog.Logger
}

// Bridge delivers notifications to a single embedded surface.
type Bridge struct {
	mu      sync.RWMutex
	surface Surface
	handler session.Handler

	logger  *slog.Logger
	dropped atomic.Uint64
}

// New creates a bridge for surface. surface may be nil and attached later
// with SetSurface.
func New(surface Surface, cfg Config) *Bridge {
	return &Bridge{surface: surface, logger: cfg.Logger}
}

// SetSurface replaces the hosted surface. A nil surface makes the next
// delivery fail with ErrSurfaceMissing.
func (b *Bridge) SetSurface(s Surface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surface = s
}

// Bind sets the handler receiving the surface's connection events.
func (b *Bridge) Bind(h session.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// Connect reports the surface as attached, triggering a full-state push.
func (b *Bridge) Connect(ctx context.Context) error {
	h, err := b.boundHandler()
	if err != nil {
		return err
	}
	return h.OnConnect(ctx, ConnID)
}

// Receive hands a message posted by the surface to the session.
func (b *Bridge) Receive(ctx context.Context, data []byte) error {
	h, err := b.boundHandler()
	if err != nil {
		return err
	}
	return h.HandleMessage(ctx, ConnID, data)
}

// Disconnect reports the surface as detached.
func (b *Bridge) Disconnect() {
	if h, err := b.boundHandler(); err == nil {
		h.OnDisconnect(ConnID)
	}
}

// Broadcast delivers n to the surface unless it is excluded.
func (b *Bridge) Broadcast(exclude session.ConnSet, n wire.Notification) error {
	if exclude.Has(ConnID) {
		return nil
	}
	return b.deliver(n)
}

// SendFullState delivers snapshot to the surface. Other connection IDs
// belong to other transports and are ignored.
func (b *Bridge) SendFullState(conn session.ConnID, snapshot []wire.Notification) error {
	if conn != ConnID {
		return nil
	}
	for _, n := range snapshot {
		if err := b.deliver(n); err != nil {
			return err
		}
	}
	return nil
}

// Dropped returns the number of notifications dropped because they could
// not be serialized or evaluated.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bridge) deliver(n wire.Notification) error {
	b.mu.RLock()
	surface := b.surface
	b.mu.RUnlock()

	if surface == nil {
		return ErrSurfaceMissing
	}

	script, err := wire.EncodeScript(n)
	if err != nil {
		b.drop(n, err)
		return nil
	}
	if err := surface.Evaluate(script); err != nil {
		if errors.Is(err, ErrSurfaceMissing) {
			return fmt.Errorf("evaluate: %w", err)
		}
		b.drop(n, err)
	}
	return nil
}

func (b *Bridge) drop(n wire.Notification, err error) {
	b.dropped.Add(1)
	if b.logger != nil {
		b.logger.Warn("dropping notification",
			slog.String("model_id", n.ModelID),
			slog.String("tname", n.TName),
			slog.Any("error", err))
	}
}

func (b *Bridge) boundHandler() (session.Handler, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.handler == nil {
		return nil, ErrNoHandler
	}
	return b.handler, nil
}

var _ session.Transport = (*Bridge)(nil)
