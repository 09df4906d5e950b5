// Package commands implements the jigna-log CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jigna-sync/jigna-go/pkg/log"
)

// Options holds the event selection flags shared by view, export, filter
// and stats. Empty fields select every event.
type Options struct {
	SessionID  string
	ConnID     string
	ModelID    string
	TimeStart  string
	TimeEnd    string
	Layer      string
	Direction  string
	Category   string
	DropReason string
}

// Filter converts the options into a log.Filter.
func (o Options) Filter() (log.Filter, error) {
	filter := log.Filter{
		SessionID:    o.SessionID,
		ConnectionID: o.ConnID,
		ModelID:      o.ModelID,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if o.Layer != "" {
		l, err := parseLayer(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := parseDirection(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if o.DropReason != "" {
		r, err := parseDropReason(o.DropReason)
		if err != nil {
			return log.Filter{}, err
		}
		filter.DropReason = &r
	}
	return filter, nil
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "session":
		return log.LayerSession, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or session)", s)
	}
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

var categories = []log.Category{
	log.CategoryEdit,
	log.CategoryNotify,
	log.CategoryState,
	log.CategoryDrop,
	log.CategoryError,
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	for _, c := range categories {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid category: %s (must be edit, notify, state, drop, or error)", s)
}

var dropReasons = []log.DropReason{
	log.DropEcho,
	log.DropUnknownModel,
	log.DropMalformed,
	log.DropCoercion,
	log.DropSetFailed,
}

// parseDropReason parses a drop reason as printed by the view command.
func parseDropReason(s string) (log.DropReason, error) {
	normalized := strings.ReplaceAll(strings.ToLower(s), "-", "_")
	for _, r := range dropReasons {
		if normalized == r.String() {
			return r, nil
		}
	}
	return 0, fmt.Errorf("invalid drop reason: %s (must be echo, unknown_model, malformed, coercion, or set_failed)", s)
}
