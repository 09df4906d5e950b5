package session

import (
	"sync/atomic"

	"github.com/jigna-sync/jigna-go/pkg/log"
)

// Stats is a snapshot of session counters.
type Stats struct {
	Connections   int
	Models        int
	EditsApplied  uint64
	Notifications uint64
	FullStates    uint64

	// Dropped edits by reason.
	DroppedEcho         uint64
	DroppedUnknownModel uint64
	DroppedMalformed    uint64
	DroppedCoercion     uint64
	DroppedSetFailed    uint64
}

// Dropped returns the total number of discarded edits.
func (s Stats) Dropped() uint64 {
	return s.DroppedEcho + s.DroppedUnknownModel + s.DroppedMalformed +
		s.DroppedCoercion + s.DroppedSetFailed
}

type counters struct {
	editsApplied  atomic.Uint64
	notifications atomic.Uint64
	fullStates    atomic.Uint64
	dropped       [5]atomic.Uint64
}

func (c *counters) drop(reason log.DropReason) {
	if int(reason) < len(c.dropped) {
		c.dropped[reason].Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		EditsApplied:        c.editsApplied.Load(),
		Notifications:       c.notifications.Load(),
		FullStates:          c.fullStates.Load(),
		DroppedEcho:         c.dropped[log.DropEcho].Load(),
		DroppedUnknownModel: c.dropped[log.DropUnknownModel].Load(),
		DroppedMalformed:    c.dropped[log.DropMalformed].Load(),
		DroppedCoercion:     c.dropped[log.DropCoercion].Load(),
		DroppedSetFailed:    c.dropped[log.DropSetFailed].Load(),
	}
}
