package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jigna-sync/jigna-go/pkg/dispatch"
	"github.com/jigna-sync/jigna-go/pkg/log"
	"github.com/jigna-sync/jigna-go/pkg/model"
	"github.com/jigna-sync/jigna-go/pkg/registry"
	"github.com/jigna-sync/jigna-go/pkg/wire"
)

// Session errors.
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotStarted     = errors.New("session not started")
	ErrClosed         = errors.New("session closed")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Config configures a Session.
type Config struct {
	// Logger is used for operational logging. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger receives edit, notify and drop events. Nil disables
	// protocol logging.
	ProtocolLogger log.Logger
}

// Session binds registered models to a transport. Model changes become
// outbound notifications and inbound edits become model mutations, with a
// client's own edit never echoed back to it.
//
// All mutations run on the dispatch loop. Application code changes models
// through Update.
type Session struct {
	id        string
	registry  *registry.Registry
	transport Transport
	loop      *dispatch.Loop

	logger         *slog.Logger
	protocolLogger log.Logger

	mu          sync.Mutex
	started     bool
	closed      bool
	active      ConnSet
	dispatching ConnSet
	bound       map[string][]func()
	err         error
	done        chan struct{}

	stats counters
}

// New creates a session over reg. The session owns reg from here on and
// clears it on Close.
func New(reg *registry.Registry, transport Transport, loop *dispatch.Loop, cfg Config) (*Session, error) {
	if reg == nil || transport == nil || loop == nil {
		return nil, fmt.Errorf("%w: registry, transport and loop are required", ErrInvalidConfig)
	}
	return &Session{
		id:             uuid.NewString(),
		registry:       reg,
		transport:      transport,
		loop:           loop,
		logger:         cfg.Logger,
		protocolLogger: log.OrNoop(cfg.ProtocolLogger),
		active:         make(ConnSet),
		dispatching:    make(ConnSet),
		bound:          make(map[string][]func()),
		done:           make(chan struct{}),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Registry returns the registry owned by the session.
func (s *Session) Registry() *registry.Registry {
	return s.registry
}

// Start binds change observers to every visible attribute of every
// registered model, then sets up the editors of every view. Models must be
// registered before Start; models registered later are only picked up when
// they become reachable through an observed attribute.
func (s *Session) Start(ctx context.Context) error {
	var startErr error
	err := s.invoke(ctx, func(context.Context) {
		s.mu.Lock()
		if s.started {
			s.mu.Unlock()
			startErr = ErrAlreadyStarted
			return
		}
		s.started = true
		s.mu.Unlock()

		for _, e := range s.registry.Entries() {
			s.bind(e)
			for _, name := range e.View.VisibleAttributes {
				if v, err := e.Model.Get(name); err == nil {
					s.bindNew(s.registry.RegisterReachable(v))
				}
			}
		}
	})
	if err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	// Editors run off the loop so that they may call Update.
	for _, e := range s.registry.Entries() {
		for _, ed := range e.View.Editors {
			ed.SetupSession(s)
		}
	}

	s.logState(log.StateEntitySession, "", "", "STARTED", "")
	s.debugLog("session started", "session_id", s.id, "models", s.registry.Len())
	return nil
}

// OnConnect adds conn to the active connections and pushes the full state
// of every registered model to it.
func (s *Session) OnConnect(ctx context.Context, conn ConnID) error {
	if err := s.requireStarted(); err != nil {
		return err
	}
	return s.invoke(ctx, func(context.Context) {
		s.mu.Lock()
		s.active[conn] = struct{}{}
		s.mu.Unlock()

		snapshot := s.fullState()
		s.stats.fullStates.Add(1)
		s.logState(log.StateEntityConnection, conn, "", "CONNECTED", fmt.Sprintf("%d notifications", len(snapshot)))
		for _, n := range snapshot {
			s.logNotify(conn, n, nil, true)
		}

		if err := s.transport.SendFullState(conn, snapshot); err != nil {
			s.fail(fmt.Errorf("full state for %s: %w", conn, err))
		}
	})
}

// OnDisconnect removes conn from the active and dispatching connections.
// It takes effect immediately and is safe to call more than once.
func (s *Session) OnDisconnect(conn ConnID) {
	s.mu.Lock()
	_, wasActive := s.active[conn]
	delete(s.active, conn)
	delete(s.dispatching, conn)
	s.mu.Unlock()

	if wasActive {
		s.logState(log.StateEntityConnection, conn, "CONNECTED", "DISCONNECTED", "")
		s.debugLog("connection removed", "conn_id", conn)
	}
}

// HandleMessage decodes a raw client message and applies it. Malformed
// messages are dropped and messages of unknown type are ignored.
func (s *Session) HandleMessage(ctx context.Context, conn ConnID, data []byte) error {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		s.drop(conn, log.DropMalformed, "", "", err.Error())
		return nil
	}
	if !req.IsSetTrait() {
		s.debugLog("ignoring message", "conn_id", conn, "type", req.Type)
		return nil
	}
	return s.ApplyEdit(ctx, conn, req.ModelID, req.TName, req.SerializedValue())
}

// ApplyEdit applies a client edit on the dispatch loop. Edits that cannot
// be applied are dropped silently and counted in Stats; the returned error
// only reports that the loop or session is no longer running.
func (s *Session) ApplyEdit(ctx context.Context, conn ConnID, modelID, name, serialized string) error {
	if err := s.requireStarted(); err != nil {
		return err
	}
	return s.invoke(ctx, func(context.Context) {
		s.applyEdit(conn, modelID, name, serialized)
	})
}

func (s *Session) applyEdit(conn ConnID, modelID, name, serialized string) {
	s.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    s.id,
		ConnectionID: string(conn),
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryEdit,
		Edit:         &log.EditEvent{ModelID: modelID, Attribute: name, Value: serialized},
	})

	s.mu.Lock()
	if s.dispatching.Has(conn) {
		delete(s.dispatching, conn)
		s.mu.Unlock()
		s.drop(conn, log.DropEcho, modelID, name, "")
		return
	}
	s.mu.Unlock()

	m, err := s.registry.Model(modelID)
	if err != nil {
		s.drop(conn, log.DropUnknownModel, modelID, name, "")
		return
	}

	value, err := wire.DecodeValue(serialized)
	if err != nil {
		s.drop(conn, log.DropMalformed, modelID, name, err.Error())
		return
	}
	if value == nil {
		return
	}

	attr, err := m.Attribute(name)
	if err != nil {
		s.drop(conn, log.DropSetFailed, modelID, name, err.Error())
		return
	}
	coerced, err := wire.Coerce(attr.Metadata(), value, s.resolve)
	if err != nil {
		s.drop(conn, log.DropCoercion, modelID, name, err.Error())
		return
	}

	s.setDispatching(conn, true)
	defer s.setDispatching(conn, false)

	if err := m.Set(name, coerced); err != nil {
		s.drop(conn, log.DropSetFailed, modelID, name, err.Error())
		return
	}
	s.stats.editsApplied.Add(1)
}

// onModelChanged is the observer bound to every visible attribute. It runs
// on the goroutine performing the mutation, which is the dispatch loop.
func (s *Session) onModelChanged(modelID, name string, value any) {
	s.mu.Lock()
	if s.closed || s.err != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.bindNew(s.registry.RegisterReachable(value))

	s.mu.Lock()
	exclude := s.dispatching.clone()
	s.mu.Unlock()

	n := wire.Notification{ModelID: modelID, TName: name, Value: value}
	s.stats.notifications.Add(1)
	s.logNotify("", n, exclude.Sorted(), false)

	if err := s.transport.Broadcast(exclude, n); err != nil {
		s.fail(fmt.Errorf("broadcast %s.%s: %w", modelID, name, err))
	}
}

// Update runs fn on the dispatch loop. Application code must mutate
// registered models through Update so that notifications are ordered with
// client edits. fn receives the loop context; passing it to a nested Update
// runs inline.
func (s *Session) Update(ctx context.Context, fn func(ctx context.Context) error) error {
	var fnErr error
	if err := s.invoke(ctx, func(ctx context.Context) { fnErr = fn(ctx) }); err != nil {
		return err
	}
	return fnErr
}

// Close tears the session down: observers are removed, the registry is
// cleared and all connection state is dropped. It is safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	bound := s.bound
	s.bound = make(map[string][]func())
	s.active = make(ConnSet)
	s.dispatching = make(ConnSet)
	if s.err == nil {
		close(s.done)
	}
	s.mu.Unlock()

	for _, cancels := range bound {
		for _, cancel := range cancels {
			cancel()
		}
	}
	s.registry.Clear()

	s.logState(log.StateEntitySession, "", "STARTED", "CLOSED", "")
	s.debugLog("session closed", "session_id", s.id)
	return nil
}

// Err returns the fatal error that stopped the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the session is closed or has failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Connections returns the active connections in sorted order.
func (s *Session) Connections() []ConnID {
	s.mu.Lock()
	ids := s.active.Sorted()
	s.mu.Unlock()

	out := make([]ConnID, len(ids))
	for i, id := range ids {
		out[i] = ConnID(id)
	}
	return out
}

// IsDispatching reports whether conn is currently applying an edit.
func (s *Session) IsDispatching(conn ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatching.Has(conn)
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	st := s.stats.snapshot()
	s.mu.Lock()
	st.Connections = len(s.active)
	s.mu.Unlock()
	st.Models = s.registry.Len()
	return st
}

func (s *Session) invoke(ctx context.Context, fn dispatch.Task) error {
	s.mu.Lock()
	closed, failed := s.closed, s.err
	s.mu.Unlock()
	if failed != nil {
		return failed
	}
	if closed {
		return ErrClosed
	}
	return s.loop.Invoke(ctx, fn)
}

func (s *Session) requireStarted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started && !s.closed && s.err == nil {
		return ErrNotStarted
	}
	return nil
}

// bind installs the change observer on every visible attribute of e.
func (s *Session) bind(e registry.Entry) {
	s.mu.Lock()
	if _, exists := s.bound[e.Model.ID()]; exists || s.closed {
		s.mu.Unlock()
		return
	}
	s.bound[e.Model.ID()] = nil
	s.mu.Unlock()

	var cancels []func()
	for _, name := range e.View.VisibleAttributes {
		cancel, err := e.Model.Observe(name, s.onModelChanged)
		if err != nil {
			s.debugLog("skipping unknown visible attribute", "model", e.Model, "attribute", name)
			continue
		}
		cancels = append(cancels, cancel)
	}

	s.mu.Lock()
	s.bound[e.Model.ID()] = cancels
	s.mu.Unlock()
}

func (s *Session) bindNew(models []*model.Model) {
	for _, m := range models {
		v, err := s.registry.View(m.ID())
		if err != nil {
			continue
		}
		s.bind(registry.Entry{Model: m, View: v})
		s.debugLog("registered nested model", "model", m)
	}
}

// fullState returns one notification per visible attribute of every
// registered model.
func (s *Session) fullState() []wire.Notification {
	var out []wire.Notification
	for _, e := range s.registry.Entries() {
		for _, name := range e.View.VisibleAttributes {
			v, err := e.Model.Get(name)
			if err != nil {
				continue
			}
			out = append(out, wire.Notification{ModelID: e.Model.ID(), TName: name, Value: v})
		}
	}
	return out
}

func (s *Session) resolve(id string) (*model.Model, bool) {
	m, err := s.registry.Model(id)
	return m, err == nil
}

func (s *Session) setDispatching(conn ConnID, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.dispatching[conn] = struct{}{}
	} else {
		delete(s.dispatching, conn)
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err != nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.err = err
	close(s.done)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Error("session failed", slog.String("session_id", s.id), slog.Any("error", err))
	}
	s.protocolLogger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.id,
		Layer:     log.LayerTransport,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Layer: log.LayerTransport, Message: err.Error(), Fatal: true},
	})
}

func (s *Session) drop(conn ConnID, reason log.DropReason, modelID, name, detail string) {
	s.stats.drop(reason)
	s.debugLog("edit dropped", "conn_id", conn, "reason", reason, "model_id", modelID, "tname", name, "detail", detail)
	s.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    s.id,
		ConnectionID: string(conn),
		Direction:    log.DirectionIn,
		Layer:        log.LayerSession,
		Category:     log.CategoryDrop,
		Drop:         &log.DropEvent{Reason: reason, ModelID: modelID, Attribute: name, Detail: detail},
	})
}

func (s *Session) logNotify(conn ConnID, n wire.Notification, excluded []string, fullState bool) {
	s.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    s.id,
		ConnectionID: string(conn),
		Direction:    log.DirectionOut,
		Layer:        log.LayerSession,
		Category:     log.CategoryNotify,
		Notify: &log.NotifyEvent{
			ModelID:   n.ModelID,
			Attribute: n.TName,
			Excluded:  excluded,
			FullState: fullState,
			Payload:   wire.EncodeValue(n.Value),
		},
	})
}

func (s *Session) logState(entity log.StateEntity, conn ConnID, oldState, newState, reason string) {
	s.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		SessionID:    s.id,
		ConnectionID: string(conn),
		Layer:        log.LayerSession,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

var _ registry.Session = (*Session)(nil)
