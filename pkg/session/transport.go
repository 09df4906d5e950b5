package session

import (
	"context"
	"errors"
	"sort"

	"github.com/jigna-sync/jigna-go/pkg/wire"
)

// ConnID identifies one client connection. It is opaque to the session.
type ConnID string

// ConnSet is a set of connections.
type ConnSet map[ConnID]struct{}

// Has reports whether id is in the set.
func (s ConnSet) Has(id ConnID) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members as sorted strings.
func (s ConnSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

func (s ConnSet) clone() ConnSet {
	out := make(ConnSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Transport delivers notifications to clients.
//
// Implementations must not block on network I/O; writes are queued per
// connection. A returned error is fatal to the session. Recoverable
// problems, such as an unserializable value or a slow client, are handled
// by the transport itself.
type Transport interface {
	// Broadcast delivers n to every live connection not in exclude.
	Broadcast(exclude ConnSet, n wire.Notification) error

	// SendFullState delivers snapshot, in order, to conn only.
	SendFullState(conn ConnID, snapshot []wire.Notification) error
}

// Handler receives connection events from a transport. Session
// implements it.
type Handler interface {
	OnConnect(ctx context.Context, conn ConnID) error
	OnDisconnect(conn ConnID)
	HandleMessage(ctx context.Context, conn ConnID, data []byte) error
}

// MultiTransport fans notifications out to several transports.
type MultiTransport []Transport

// Broadcast forwards n to every transport and joins their errors.
func (m MultiTransport) Broadcast(exclude ConnSet, n wire.Notification) error {
	var errs []error
	for _, t := range m {
		if err := t.Broadcast(exclude, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendFullState forwards the snapshot to every transport and joins their
// errors. Transports ignore connections they do not own.
func (m MultiTransport) SendFullState(conn ConnID, snapshot []wire.Notification) error {
	var errs []error
	for _, t := range m {
		if err := t.SendFullState(conn, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Transport = MultiTransport(nil)
	_ Handler   = (*Session)(nil)
)
