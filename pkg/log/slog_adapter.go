package log

import (
	"context"
	"log/slog"
	"strings"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}

	switch {
	case event.Edit != nil:
		attrs = append(attrs,
			slog.String("model_id", event.Edit.ModelID),
			slog.String("tname", event.Edit.Attribute),
			slog.String("value", event.Edit.Value),
		)
	case event.Notify != nil:
		attrs = append(attrs,
			slog.String("model_id", event.Notify.ModelID),
			slog.String("tname", event.Notify.Attribute),
		)
		if len(event.Notify.Excluded) > 0 {
			attrs = append(attrs, slog.String("excluded", strings.Join(event.Notify.Excluded, ",")))
		}
		if event.Notify.FullState {
			attrs = append(attrs, slog.Bool("full_state", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Drop != nil:
		attrs = append(attrs,
			slog.String("reason", event.Drop.Reason.String()),
			slog.String("model_id", event.Drop.ModelID),
			slog.String("tname", event.Drop.Attribute),
		)
		if event.Drop.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Drop.Detail))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.Bool("fatal", event.Error.Fatal),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
