package channel

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/jigna-sync/jigna-go/pkg/session"
)

// client is one websocket connection.
type client struct {
	id   session.ConnID
	conn *websocket.Conn

	// send is closed by stop; callers hold the channel lock while sending
	// or stopping.
	send     chan []byte
	stopOnce sync.Once
}

func newClient(id session.ConnID, conn *websocket.Conn, queue int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, queue),
	}
}

// enqueue queues msg without blocking. It reports false if the queue is
// full.
func (cl *client) enqueue(msg []byte) bool {
	select {
	case cl.send <- msg:
		return true
	default:
		return false
	}
}

func (cl *client) stop() {
	cl.stopOnce.Do(func() { close(cl.send) })
}
