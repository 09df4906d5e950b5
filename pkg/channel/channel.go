// Package channel implements the multi-connection transport over
// websockets. Each client gets its own read and write pump; writes are
// queued so that the dispatch loop never blocks on network I/O.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jigna-sync/jigna-go/pkg/log"
	"github.com/jigna-sync/jigna-go/pkg/session"
	"github.com/jigna-sync/jigna-go/pkg/wire"
)

// Channel errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrClosed        = errors.New("channel closed")
)

// Config configures a Channel.
type Config struct {
	// WriteQueue is the number of messages buffered per client. A client
	// whose queue overflows is disconnected.
	WriteQueue int

	// WriteWait is the time allowed to write a message to the peer.
	WriteWait time.Duration

	// PongWait is the time allowed to read the next pong from the peer.
	// Pings are sent at 9/10 of this period.
	PongWait time.Duration

	// MaxMessageSize is the largest inbound message accepted.
	MaxMessageSize int64

	// CheckOrigin is passed to the websocket upgrader. Nil applies the
	// same-origin check.
	CheckOrigin func(r *http.Request) bool

	// Logger is used for operational logging. Nil disables logging.
	Logger *slog.Logger

	// ProtocolLogger receives connection state events.
	ProtocolLogger log.Logger
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig() Config {
	return Config{
		WriteQueue:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.WriteQueue < 1 {
		return fmt.Errorf("%w: write queue must be positive", ErrInvalidConfig)
	}
	if c.WriteWait <= 0 || c.PongWait <= 0 {
		return fmt.Errorf("%w: write and pong wait must be positive", ErrInvalidConfig)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Channel is an http.Handler accepting websocket clients and a
// session.Transport delivering notifications to them.
type Channel struct {
	config         Config
	upgrader       websocket.Upgrader
	logger         *slog.Logger
	protocolLogger log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	handler session.Handler
	clients map[session.ConnID]*client
	closed  bool
}

// New creates a channel. Bind a handler before serving.
func New(config Config) (*Channel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Channel{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		logger:         config.Logger,
		protocolLogger: log.OrNoop(config.ProtocolLogger),
		ctx:            ctx,
		cancel:         cancel,
		clients:        make(map[session.ConnID]*client),
	}, nil
}

// Bind sets the handler receiving connection events.
func (c *Channel) Bind(h session.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	handler, closed := c.handler, c.closed
	c.mu.RUnlock()
	if handler == nil || closed {
		http.Error(w, "sync channel unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.debugLog("websocket upgrade failed", "error", err)
		return
	}

	cl := newClient(session.ConnID(uuid.NewString()), conn, c.config.WriteQueue)
	if !c.register(cl) {
		_ = conn.Close()
		return
	}
	c.logState(cl.id, r.RemoteAddr, "", "CONNECTED")
	c.debugLog("client connected", "conn_id", cl.id, "remote_addr", r.RemoteAddr)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.writePump(cl)
	}()

	c.readPump(handler, cl)
}

func (c *Channel) register(cl *client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.clients[cl.id] = cl
	return true
}

// remove detaches cl and stops its write pump. Queued messages are
// discarded.
func (c *Channel) remove(cl *client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.clients[cl.id]; ok && cur == cl {
		delete(c.clients, cl.id)
		cl.stop()
	}
}

// readPump feeds inbound messages to the handler. Each message is fully
// applied before the next one is read, so edits from one client never
// overlap.
func (c *Channel) readPump(handler session.Handler, cl *client) {
	defer func() {
		c.remove(cl)
		handler.OnDisconnect(cl.id)
		_ = cl.conn.Close()
		c.logState(cl.id, "", "CONNECTED", "DISCONNECTED")
		c.debugLog("client disconnected", "conn_id", cl.id)
	}()

	if err := handler.OnConnect(c.ctx, cl.id); err != nil {
		c.debugLog("connect rejected", "conn_id", cl.id, "error", err)
		return
	}

	cl.conn.SetReadLimit(c.config.MaxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) && c.logger != nil {
				c.logger.Warn("websocket read error", slog.String("conn_id", string(cl.id)), slog.Any("error", err))
			}
			return
		}
		if err := handler.HandleMessage(c.ctx, cl.id, data); err != nil {
			c.debugLog("handler stopped accepting messages", "conn_id", cl.id, "error", err)
			return
		}
	}
}

func (c *Channel) writePump(cl *client) {
	pingPeriod := c.config.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.debugLog("websocket write failed", "conn_id", cl.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues n for every client not in exclude.
func (c *Channel) Broadcast(exclude session.ConnSet, n wire.Notification) error {
	data, err := wire.EncodeNotification(n)
	if err != nil {
		c.dropUnserializable(n, err)
		return nil
	}

	var overflowed []*client
	c.mu.RLock()
	for id, cl := range c.clients {
		if exclude.Has(id) {
			continue
		}
		if !cl.enqueue(data) {
			overflowed = append(overflowed, cl)
		}
	}
	c.mu.RUnlock()

	c.evict(overflowed)
	return nil
}

// SendFullState queues snapshot for conn. Connections of other transports
// are ignored.
func (c *Channel) SendFullState(conn session.ConnID, snapshot []wire.Notification) error {
	c.mu.RLock()
	cl, ok := c.clients[conn]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	for _, n := range snapshot {
		data, err := wire.EncodeNotification(n)
		if err != nil {
			c.dropUnserializable(n, err)
			continue
		}
		c.mu.RLock()
		_, live := c.clients[conn]
		queued := live && cl.enqueue(data)
		c.mu.RUnlock()
		if !live {
			return nil
		}
		if !queued {
			c.evict([]*client{cl})
			return nil
		}
	}
	return nil
}

// Connections returns the IDs of the connected clients.
func (c *Channel) Connections() []session.ConnID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]session.ConnID, 0, len(c.clients))
	for id := range c.clients {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of connected clients.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

// Close disconnects every client and waits for their write pumps to exit.
// Further upgrades are refused.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, cl := range c.clients {
		delete(c.clients, id)
		cl.stop()
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Channel) evict(clients []*client) {
	for _, cl := range clients {
		c.remove(cl)
		if c.logger != nil {
			c.logger.Warn("client too slow, disconnecting", slog.String("conn_id", string(cl.id)))
		}
		c.protocolLogger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: string(cl.id),
			Direction:    log.DirectionOut,
			Layer:        log.LayerTransport,
			Category:     log.CategoryError,
			Error:        &log.ErrorEventData{Layer: log.LayerTransport, Message: "write queue overflow"},
		})
	}
}

func (c *Channel) dropUnserializable(n wire.Notification, err error) {
	if c.logger != nil {
		c.logger.Warn("dropping unserializable notification",
			slog.String("model_id", n.ModelID),
			slog.String("tname", n.TName),
			slog.Any("error", err))
	}
}

func (c *Channel) logState(conn session.ConnID, remote, oldState, newState string) {
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: string(conn),
		RemoteAddr:   remote,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func (c *Channel) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

var _ session.Transport = (*Channel)(nil)
