package bridge_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jigna-sync/jigna-go/pkg/bridge"
	"github.com/jigna-sync/jigna-go/pkg/bridge/mocks"
	"github.com/jigna-sync/jigna-go/pkg/dispatch"
	"github.com/jigna-sync/jigna-go/pkg/model"
	"github.com/jigna-sync/jigna-go/pkg/registry"
	"github.com/jigna-sync/jigna-go/pkg/session"
	"github.com/jigna-sync/jigna-go/pkg/wire"
)

var schema = model.Schema{
	{Name: "name", Type: model.TypeString},
	{Name: "age", Type: model.TypeInt},
	{Name: "blob"},
}

const scriptPrefix = "jigna.client.bridge.handle_event("

func isScriptFor(tname string) any {
	return mock.MatchedBy(func(script string) bool {
		return strings.HasPrefix(script, scriptPrefix) && strings.Contains(script, `\"tname\":\"`+tname+`\"`)
	})
}

type fixture struct {
	bridge  *bridge.Bridge
	session *session.Session
	person  *model.Model
}

func newFixture(t *testing.T, surface bridge.Surface) *fixture {
	t.Helper()

	loop, err := dispatch.New(dispatch.DefaultConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		loop.Stop()
	})

	person := model.New("Person", schema)
	require.NoError(t, person.Set("name", "Fred"))

	reg := registry.New()
	_, err = reg.Register(person, nil)
	require.NoError(t, err)

	b := bridge.New(surface, bridge.Config{})
	s, err := session.New(reg, b, loop, session.Config{})
	require.NoError(t, err)
	b.Bind(s)
	require.NoError(t, s.Start(context.Background()))

	return &fixture{bridge: b, session: s, person: person}
}

func (f *fixture) update(t *testing.T, name string, value any) {
	t.Helper()
	require.NoError(t, f.session.Update(context.Background(), func(context.Context) error {
		return f.person.Set(name, value)
	}))
}

func TestConnectPushesFullState(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	f := newFixture(t, surface)

	surface.EXPECT().Evaluate(isScriptFor("name")).Return(nil).Once()
	surface.EXPECT().Evaluate(isScriptFor("age")).Return(nil).Once()
	surface.EXPECT().Evaluate(isScriptFor("blob")).Return(nil).Once()

	require.NoError(t, f.bridge.Connect(context.Background()))
}

func TestApplicationChangeIsDelivered(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	f := newFixture(t, surface)

	var got string
	surface.EXPECT().Evaluate(mock.Anything).Run(func(script string) { got = script }).Return(nil).Once()

	f.update(t, "age", 43)

	literal := strings.TrimSuffix(strings.TrimPrefix(got, scriptPrefix), ");")
	assert.Contains(t, literal, `\"value\":43`)
	assert.Contains(t, literal, f.person.ID())
}

func TestSurfaceEditIsNotEchoed(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	f := newFixture(t, surface)

	surface.EXPECT().Evaluate(mock.Anything).Return(nil).Times(3)
	require.NoError(t, f.bridge.Connect(context.Background()))

	msg, err := wire.EncodeRequest(f.person.ID(), "age", "41")
	require.NoError(t, err)
	require.NoError(t, f.bridge.Receive(context.Background(), msg))

	age, _ := f.person.Get("age")
	assert.Equal(t, int64(41), age)
	surface.AssertNumberOfCalls(t, "Evaluate", 3)
}

func TestMissingSurfaceIsFatal(t *testing.T) {
	f := newFixture(t, nil)

	f.update(t, "age", 1)

	<-f.session.Done()
	assert.ErrorIs(t, f.session.Err(), bridge.ErrSurfaceMissing)
}

func TestSurfaceReportingMissingIsFatal(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	f := newFixture(t, surface)

	surface.EXPECT().Evaluate(mock.Anything).Return(bridge.ErrSurfaceMissing).Once()
	f.update(t, "age", 1)

	assert.ErrorIs(t, f.session.Err(), bridge.ErrSurfaceMissing)
}

func TestUnserializableValueIsDropped(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	f := newFixture(t, surface)

	f.update(t, "blob", make(chan int))

	assert.Equal(t, uint64(1), f.bridge.Dropped())
	assert.NoError(t, f.session.Err())

	surface.EXPECT().Evaluate(isScriptFor("age")).Return(nil).Once()
	f.update(t, "age", 2)
}

func TestEvaluateErrorIsDropped(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	f := newFixture(t, surface)

	surface.EXPECT().Evaluate(mock.Anything).Return(errors.New("script error")).Once()
	f.update(t, "age", 2)

	assert.Equal(t, uint64(1), f.bridge.Dropped())
	assert.NoError(t, f.session.Err())
}

func TestSendFullStateIgnoresOtherConnections(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	b := bridge.New(surface, bridge.Config{})

	err := b.SendFullState("ws-1", []wire.Notification{{ModelID: "m", TName: "t"}})
	assert.NoError(t, err)
	surface.AssertNotCalled(t, "Evaluate", mock.Anything)
}

func TestBroadcastRespectsExclusion(t *testing.T) {
	surface := mocks.NewMockSurface(t)
	b := bridge.New(surface, bridge.Config{})

	err := b.Broadcast(session.ConnSet{bridge.ConnID: {}}, wire.Notification{ModelID: "m", TName: "t"})
	assert.NoError(t, err)
}

func TestUnboundBridge(t *testing.T) {
	b := bridge.New(nil, bridge.Config{})
	assert.ErrorIs(t, b.Connect(context.Background()), bridge.ErrNoHandler)
	assert.ErrorIs(t, b.Receive(context.Background(), nil), bridge.ErrNoHandler)
	b.Disconnect()
}

func TestSetSurface(t *testing.T) {
	b := bridge.New(nil, bridge.Config{})
	n := wire.Notification{ModelID: "m", TName: "t", Value: "v"}
	assert.ErrorIs(t, b.Broadcast(nil, n), bridge.ErrSurfaceMissing)

	surface := mocks.NewMockSurface(t)
	surface.EXPECT().Evaluate(mock.Anything).Return(nil).Once()
	b.SetSurface(surface)
	assert.NoError(t, b.Broadcast(nil, n))
}
