package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jigna-sync/jigna-go/pkg/log"
)

const timestampFormat = "2006-01-02T15:04:05.000000Z"

// RunView writes every event matching opts in human-readable form.
func RunView(path string, opts Options, output io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timestampFormat)
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, shortenConnID(event.ConnectionID), event.Direction, event.Layer, eventType(event))

	switch {
	case event.Edit != nil:
		formatEditDetails(w, event.Edit)
	case event.Notify != nil:
		formatNotifyDetails(w, event.Notify)
	case event.Drop != nil:
		formatDropDetails(w, event.Drop)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	fmt.Fprintln(w)
}

// eventType labels the event by its payload.
func eventType(event log.Event) string {
	switch {
	case event.Edit != nil:
		return "Edit"
	case event.Notify != nil:
		if event.Notify.FullState {
			return "FullState"
		}
		return "Notify"
	case event.Drop != nil:
		return "Drop"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatEditDetails(w io.Writer, edit *log.EditEvent) {
	fmt.Fprintf(w, "  Model: %s  Attribute: %s\n", edit.ModelID, edit.Attribute)
	if edit.Value != "" {
		fmt.Fprintf(w, "  Value: %s\n", edit.Value)
	}
}

func formatNotifyDetails(w io.Writer, n *log.NotifyEvent) {
	fmt.Fprintf(w, "  Model: %s  Attribute: %s\n", n.ModelID, n.Attribute)
	if len(n.Excluded) > 0 {
		fmt.Fprintf(w, "  Excluded: %s\n", strings.Join(n.Excluded, ", "))
	}
	if n.Payload != nil {
		payloadJSON, err := json.Marshal(n.Payload)
		if err == nil {
			fmt.Fprintf(w, "  Payload: %s\n", payloadJSON)
		}
	}
}

func formatDropDetails(w io.Writer, d *log.DropEvent) {
	fmt.Fprintf(w, "  Reason: %s\n", d.Reason)
	if d.ModelID != "" || d.Attribute != "" {
		fmt.Fprintf(w, "  Model: %s  Attribute: %s\n", d.ModelID, d.Attribute)
	}
	if d.Detail != "" {
		fmt.Fprintf(w, "  Detail: %s\n", d.Detail)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", e.Layer)
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Fatal {
		fmt.Fprintln(w, "  Fatal: true")
	}
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}
