package channel

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jigna-sync/jigna-go/pkg/dispatch"
	"github.com/jigna-sync/jigna-go/pkg/model"
	"github.com/jigna-sync/jigna-go/pkg/registry"
	"github.com/jigna-sync/jigna-go/pkg/session"
	"github.com/jigna-sync/jigna-go/pkg/wire"
)

var personSchema = model.Schema{
	{Name: "name", Type: model.TypeString},
	{Name: "age", Type: model.TypeInt},
	{Name: "fruits", Type: model.TypeSequence, Elem: model.TypeString},
	{Name: "phonebook", Type: model.TypeMapping, Elem: model.TypeInt},
}

type harness struct {
	server  *httptest.Server
	channel *Channel
	session *session.Session
	person  *model.Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	loop, err := dispatch.New(dispatch.DefaultConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()

	person := model.New("Person", personSchema)
	require.NoError(t, person.Set("name", "Fred"))
	require.NoError(t, person.Set("age", 42))
	require.NoError(t, person.Set("fruits", []string{"peach", "pear"}))
	require.NoError(t, person.Set("phonebook", map[string]int{"joe": 123}))

	reg := registry.New()
	_, err = reg.Register(person, nil)
	require.NoError(t, err)

	ch, err := New(DefaultConfig())
	require.NoError(t, err)
	s, err := session.New(reg, ch, loop, session.Config{})
	require.NoError(t, err)
	ch.Bind(s)
	require.NoError(t, s.Start(context.Background()))

	srv := httptest.NewServer(ch)
	t.Cleanup(func() {
		_ = ch.Close()
		srv.Close()
		_ = s.Close()
		cancel()
		loop.Stop()
	})

	return &harness{server: srv, channel: ch, session: s, person: person}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readFullState reads the initial push and returns it keyed by attribute.
func readFullState(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	state := make(map[string]any)
	for range personSchema {
		msg := readNotification(t, conn)
		state[msg["tname"].(string)] = msg["value"]
	}
	return state
}

func sendEdit(t *testing.T, conn *websocket.Conn, modelID, tname string, value any) {
	t.Helper()
	data, err := wire.EncodeRequest(modelID, tname, value)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func (h *harness) update(t *testing.T, name string, value any) {
	t.Helper()
	require.NoError(t, h.session.Update(context.Background(), func(context.Context) error {
		return h.person.Set(name, value)
	}))
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := []func(*Config){
		func(c *Config) { c.WriteQueue = 0 },
		func(c *Config) { c.WriteWait = 0 },
		func(c *Config) { c.PongWait = -1 },
		func(c *Config) { c.MaxMessageSize = 0 },
	}
	for _, mutate := range bad {
		c := DefaultConfig()
		mutate(&c)
		assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
	}
}

func TestFullStateOnConnect(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	state := readFullState(t, conn)
	assert.Equal(t, "Fred", state["name"])
	assert.Equal(t, float64(42), state["age"])
	assert.Equal(t, []any{"peach", "pear"}, state["fruits"])
	assert.Equal(t, map[string]any{"joe": float64(123)}, state["phonebook"])
}

func TestEditIsBroadcastWithoutEcho(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t)
	readFullState(t, a)
	b := h.dial(t)
	readFullState(t, b)

	sendEdit(t, a, h.person.ID(), "age", "41")

	msg := readNotification(t, b)
	assert.Equal(t, h.person.ID(), msg["model_id"])
	assert.Equal(t, "age", msg["tname"])
	assert.Equal(t, float64(41), msg["value"])

	age, err := h.person.Get("age")
	require.NoError(t, err)
	assert.Equal(t, int64(41), age)

	// The next message a sees is the application change, not its own edit.
	h.update(t, "name", "Barney")
	msg = readNotification(t, a)
	assert.Equal(t, "name", msg["tname"])
	assert.Equal(t, "Barney", msg["value"])

	msg = readNotification(t, b)
	assert.Equal(t, "name", msg["tname"])
}

func TestUnknownMessagesAreIgnored(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t)
	readFullState(t, a)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	sendEdit(t, a, "no-such-model", "name", "x")

	h.update(t, "age", 7)
	msg := readNotification(t, a)
	assert.Equal(t, float64(7), msg["value"])
	assert.Equal(t, uint64(1), h.session.Stats().DroppedUnknownModel)
}

func TestReloadResyncs(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t)
	readFullState(t, a)
	b := h.dial(t)
	readFullState(t, b)

	sendEdit(t, b, h.person.ID(), "fruits", []string{"apple", "banana"})
	sendEdit(t, b, h.person.ID(), "phonebook", map[string]int{"joe": 123, "dan": 456})
	readNotification(t, a)
	readNotification(t, a)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool {
		return len(h.session.Connections()) == 1 && h.channel.Len() == 1
	}, 5*time.Second, 10*time.Millisecond)

	reloaded := h.dial(t)
	state := readFullState(t, reloaded)
	assert.Equal(t, []any{"apple", "banana"}, state["fruits"])
	assert.Equal(t, map[string]any{"joe": float64(123), "dan": float64(456)}, state["phonebook"])
	assert.Equal(t, 2, h.channel.Len())
}

func TestDisconnectedClientIsNotServed(t *testing.T) {
	h := newHarness(t)
	a := h.dial(t)
	readFullState(t, a)
	b := h.dial(t)
	readFullState(t, b)

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return h.channel.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	h.update(t, "age", 50)
	msg := readNotification(t, a)
	assert.Equal(t, float64(50), msg["value"])
	assert.Equal(t, 1, h.session.Stats().Connections)
}

func TestUnboundChannelRefuses(t *testing.T) {
	ch, err := New(DefaultConfig())
	require.NoError(t, err)
	srv := httptest.NewServer(ch)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestOverflowEvictsClient(t *testing.T) {
	ch, err := New(DefaultConfig())
	require.NoError(t, err)

	slow := newClient("slow", nil, 1)
	fast := newClient("fast", nil, 8)
	ch.register(slow)
	ch.register(fast)

	n := wire.Notification{ModelID: "m", TName: "t", Value: 1}
	require.NoError(t, ch.Broadcast(nil, n))
	require.NoError(t, ch.Broadcast(nil, n))

	assert.Equal(t, []session.ConnID{"fast"}, ch.Connections())
	assert.Len(t, fast.send, 2)

	// The evicted client's queue is closed after the buffered message.
	<-slow.send
	_, open := <-slow.send
	assert.False(t, open)
}

func TestBroadcastSkipsExcludedAndUnserializable(t *testing.T) {
	ch, err := New(DefaultConfig())
	require.NoError(t, err)

	a := newClient("a", nil, 8)
	b := newClient("b", nil, 8)
	ch.register(a)
	ch.register(b)

	require.NoError(t, ch.Broadcast(session.ConnSet{"a": {}}, wire.Notification{ModelID: "m", TName: "t", Value: 1}))
	require.NoError(t, ch.Broadcast(nil, wire.Notification{ModelID: "m", TName: "t", Value: make(chan int)}))

	assert.Empty(t, a.send)
	assert.Len(t, b.send, 1)

	require.NoError(t, ch.SendFullState("b", []wire.Notification{{ModelID: "m", TName: "x", Value: "y"}}))
	require.NoError(t, ch.SendFullState("other-transport", []wire.Notification{{ModelID: "m", TName: "x"}}))
	assert.Len(t, b.send, 2)
}

func TestCloseRefusesNewClients(t *testing.T) {
	ch, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	assert.False(t, ch.register(newClient("late", nil, 1)))
}
