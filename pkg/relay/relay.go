// Package relay mirrors a session onto Redis pub/sub so that processes
// outside the page can observe model changes and submit edits.
//
// Notifications are published as JSON to the configured channel. The full
// state pushed when the relay connects goes to "<channel>:<conn>", and
// edit requests are read from "<channel>:edits".
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/jigna-sync/jigna-go/pkg/session"
	"github.com/jigna-sync/jigna-go/pkg/wire"
)

// ConnID identifies the relay to the session. Edits read from Redis are
// attributed to it, so they are not republished.
const ConnID session.ConnID = "relay"

// Relay errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoHandler     = errors.New("relay has no bound handler")
	ErrRunning       = errors.New("relay already running")
)

// Publisher publishes a message on a channel. *redis.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Subscriber opens a subscription. *redis.Client implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Config configures a Relay.
type Config struct {
	// Channel is the Redis channel notifications are published to.
	Channel string

	// Queue is the number of pending publishes. Notifications arriving
	// while the queue is full are dropped.
	Queue int

	// Logger is used for operational logging. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		Channel: "jigna",
		Queue:   1024,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("%w: channel must not be empty", ErrInvalidConfig)
	}
	if c.Queue < 1 {
		return fmt.Errorf("%w: queue must be positive", ErrInvalidConfig)
	}
	return nil
}

type outbound struct {
	channel string
	payload []byte
}

// Relay is a session.Transport publishing to Redis.
type Relay struct {
	config     Config
	publisher  Publisher
	subscriber Subscriber
	logger     *slog.Logger

	queue   chan outbound
	running atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64

	mu      sync.RWMutex
	handler session.Handler

	// linkMu guards connected and orders enqueues against the drain on
	// disconnect.
	linkMu    sync.Mutex
	connected bool
}

// New creates a relay publishing through p. A nil s disables inbound
// edits.
func New(p Publisher, s Subscriber, config Config) (*Relay, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: publisher is required", ErrInvalidConfig)
	}
	return &Relay{
		config:     config,
		publisher:  p,
		subscriber: s,
		logger:     config.Logger,
		queue:      make(chan outbound, config.Queue),
	}, nil
}

// Dial connects to the Redis server at addr and verifies it responds.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Bind sets the handler receiving the relay's connection and edits.
func (r *Relay) Bind(h session.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

// Run connects the relay to the session, then publishes queued
// notifications and forwards inbound edits until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	h := r.boundHandler()
	if h == nil {
		return ErrNoHandler
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer r.running.Store(false)

	// The full state is sent from within OnConnect, so the link opens first.
	r.setConnected(true)
	if err := h.OnConnect(ctx, ConnID); err != nil {
		r.setConnected(false)
		return fmt.Errorf("relay connect: %w", err)
	}
	defer func() {
		r.setConnected(false)
		h.OnDisconnect(ConnID)
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.publishLoop(ctx)
		return ctx.Err()
	})
	if r.subscriber != nil {
		g.Go(func() error {
			return r.subscribeLoop(ctx, h)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-r.queue:
			r.publish(ctx, out)
		}
	}
}

func (r *Relay) publish(ctx context.Context, out outbound) {
	if err := r.publisher.Publish(ctx, out.channel, out.payload).Err(); err != nil {
		r.dropped.Add(1)
		if r.logger != nil {
			r.logger.Warn("redis publish failed",
				slog.String("channel", out.channel),
				slog.Any("error", err))
		}
		return
	}
	r.published.Add(1)
}

func (r *Relay) subscribeLoop(ctx context.Context, h session.Handler) error {
	pubsub := r.subscriber.Subscribe(ctx, r.EditsChannel())
	defer pubsub.Close()

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := r.Receive(ctx, h, msg.Payload); err != nil {
				return err
			}
		}
	}
}

// Receive hands an inbound edit request to h.
func (r *Relay) Receive(ctx context.Context, h session.Handler, payload string) error {
	r.debugLog("relay edit received", "bytes", len(payload))
	return h.HandleMessage(ctx, ConnID, []byte(payload))
}

// Broadcast queues n for publication unless the relay is excluded or
// not connected.
func (r *Relay) Broadcast(exclude session.ConnSet, n wire.Notification) error {
	if exclude.Has(ConnID) {
		return nil
	}
	r.linkMu.Lock()
	defer r.linkMu.Unlock()
	if r.connected {
		r.enqueue(r.config.Channel, n)
	}
	return nil
}

// SendFullState queues snapshot for the relay's state channel.
// Connections of other transports are ignored.
func (r *Relay) SendFullState(conn session.ConnID, snapshot []wire.Notification) error {
	if conn != ConnID {
		return nil
	}
	r.linkMu.Lock()
	defer r.linkMu.Unlock()
	if !r.connected {
		return nil
	}
	for _, n := range snapshot {
		r.enqueue(r.StateChannel(), n)
	}
	return nil
}

// setConnected opens or closes the link. Closing discards everything
// still queued, so a later connection starts from its full state.
func (r *Relay) setConnected(connected bool) {
	r.linkMu.Lock()
	defer r.linkMu.Unlock()
	r.connected = connected
	if connected {
		return
	}
	for {
		select {
		case <-r.queue:
		default:
			return
		}
	}
}

func (r *Relay) enqueue(channel string, n wire.Notification) {
	data, err := wire.EncodeNotification(n)
	if err != nil {
		r.drop("dropping unserializable notification", n, err)
		return
	}
	select {
	case r.queue <- outbound{channel: channel, payload: data}:
	default:
		r.drop("relay queue full", n, nil)
	}
}

// StateChannel is the channel the full state is published to.
func (r *Relay) StateChannel() string {
	return r.config.Channel + ":" + string(ConnID)
}

// EditsChannel is the channel edit requests are read from.
func (r *Relay) EditsChannel() string {
	return r.config.Channel + ":edits"
}

// Published returns the number of successful publishes.
func (r *Relay) Published() uint64 {
	return r.published.Load()
}

// Dropped returns the number of notifications that were not published.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Relay) boundHandler() session.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handler
}

func (r *Relay) drop(msg string, n wire.Notification, err error) {
	r.dropped.Add(1)
	if r.logger != nil {
		r.logger.Warn(msg,
			slog.String("model_id", n.ModelID),
			slog.String("tname", n.TName),
			slog.Any("error", err))
	}
}

func (r *Relay) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

var (
	_ session.Transport = (*Relay)(nil)
	_ Publisher         = (*redis.Client)(nil)
	_ Subscriber        = (*redis.Client)(nil)
)
