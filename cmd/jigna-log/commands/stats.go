package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jigna-sync/jigna-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	DropsByReason     map[log.DropReason]int
	Sessions          map[string]int
	Connections       map[string]*ConnectionStats
	Models            map[string]int
	Errors            int
	FatalErrors       int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Edits      int
	Drops      int
	RemoteAddr string
}

// RunStats analyzes the events matching opts and prints statistics.
func RunStats(path string, opts Options, w io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		DropsByReason:     make(map[log.DropReason]int),
		Sessions:          make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
		Models:            make(map[string]int),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++
	if event.SessionID != "" {
		s.Sessions[event.SessionID]++
	}

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if id := eventModelID(event); id != "" {
		s.Models[id]++
	}
	if event.Drop != nil {
		s.DropsByReason[event.Drop.Reason]++
	}
	if event.Error != nil {
		s.Errors++
		if event.Error.Fatal {
			s.FatalErrors++
		}
	}

	if event.ConnectionID == "" {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.RemoteAddr != "" && conn.RemoteAddr == "" {
		conn.RemoteAddr = event.RemoteAddr
	}
	if event.Edit != nil {
		conn.Edits++
	}
	if event.Drop != nil {
		conn.Drops++
	}
}

func eventModelID(event log.Event) string {
	switch {
	case event.Edit != nil:
		return event.Edit.ModelID
	case event.Notify != nil:
		return event.Notify.ModelID
	case event.Drop != nil:
		return event.Drop.ModelID
	}
	return ""
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== jigna Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Sessions:     %d\n", len(stats.Sessions))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerSession} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range categories {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.DropsByReason) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Drops by Reason:")
		for _, r := range dropReasons {
			if count := stats.DropsByReason[r]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", r.String()+":", count)
			}
		}
	}

	if len(stats.Models) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Models: %d\n", len(stats.Models))
		ids := make([]string, 0, len(stats.Models))
		for id := range stats.Models {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if stats.Models[ids[i]] != stats.Models[ids[j]] {
				return stats.Models[ids[i]] > stats.Models[ids[j]]
			}
			return ids[i] < ids[j]
		})
		for _, id := range ids {
			fmt.Fprintf(w, "  %s: %d events\n", id, stats.Models[id])
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			if !conns[i].stats.FirstSeen.Equal(conns[j].stats.FirstSeen) {
				return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
			}
			return conns[i].id < conns[j].id
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, %d edits, %d drops, duration %s\n",
				shortenConnID(c.id), c.stats.Events, c.stats.Edits, c.stats.Drops, duration)
			if c.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "             Remote: %s\n", c.stats.RemoteAddr)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d (fatal %d)\n", stats.Errors, stats.FatalErrors)
	}
}
