package log

import (
	"time"
)

// Event represents a protocol log event captured by a session or transport.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the session that produced the event.
	SessionID string `cbor:"2,keyasint,omitempty"`

	// ConnectionID identifies the client connection, if any.
	ConnectionID string `cbor:"3,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"6,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Edit        *EditEvent        `cbor:"10,keyasint,omitempty"`
	Notify      *NotifyEvent      `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Drop        *DropEvent        `cbor:"13,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a client-to-server message.
	DirectionIn Direction = 0
	// DirectionOut indicates a server-to-client message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the connection layer (websocket, bridge, relay).
	LayerTransport Layer = 0
	// LayerWire is the codec layer.
	LayerWire Layer = 1
	// LayerSession is the session layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryEdit indicates an inbound edit request.
	CategoryEdit Category = 0
	// CategoryNotify indicates an outbound change notification.
	CategoryNotify Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryDrop indicates an edit that was discarded.
	CategoryDrop Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryEdit:
		return "EDIT"
	case CategoryNotify:
		return "NOTIFY"
	case CategoryState:
		return "STATE"
	case CategoryDrop:
		return "DROP"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// EditEvent captures an inbound set_trait request.
type EditEvent struct {
	// ModelID is the target model.
	ModelID string `cbor:"1,keyasint"`

	// Attribute is the target attribute name.
	Attribute string `cbor:"2,keyasint"`

	// Value is the serialized value as received.
	Value string `cbor:"3,keyasint,omitempty"`
}

// NotifyEvent captures an outbound change notification.
type NotifyEvent struct {
	// ModelID is the changed model.
	ModelID string `cbor:"1,keyasint"`

	// Attribute is the changed attribute name.
	Attribute string `cbor:"2,keyasint"`

	// Excluded lists connections skipped as originators of the change.
	Excluded []string `cbor:"3,keyasint,omitempty"`

	// FullState marks notifications sent as part of a full-state push.
	FullState bool `cbor:"4,keyasint,omitempty"`

	// Payload is the encoded value (JSON-compatible representation).
	Payload any `cbor:"5,keyasint,omitempty"`
}

// DropEvent captures an edit that was silently discarded.
type DropEvent struct {
	// Reason classifies the drop.
	Reason DropReason `cbor:"1,keyasint"`

	// ModelID is the target model, if known.
	ModelID string `cbor:"2,keyasint,omitempty"`

	// Attribute is the target attribute, if known.
	Attribute string `cbor:"3,keyasint,omitempty"`

	// Detail is a human-readable explanation.
	Detail string `cbor:"4,keyasint,omitempty"`
}

// DropReason classifies why an edit was discarded.
type DropReason uint8

const (
	// DropEcho indicates a stray echo of the connection's own edit.
	DropEcho DropReason = 0
	// DropUnknownModel indicates an unregistered model ID.
	DropUnknownModel DropReason = 1
	// DropMalformed indicates a message or value that failed to decode.
	DropMalformed DropReason = 2
	// DropCoercion indicates a value that could not be coerced to the
	// attribute's declared type.
	DropCoercion DropReason = 3
	// DropSetFailed indicates the model rejected the value.
	DropSetFailed DropReason = 4
)

// String returns the drop reason name.
func (r DropReason) String() string {
	switch r {
	case DropEcho:
		return "echo"
	case DropUnknownModel:
		return "unknown_model"
	case DropMalformed:
		return "malformed"
	case DropCoercion:
		return "coercion"
	case DropSetFailed:
		return "set_failed"
	default:
		return "unknown"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session state change.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Fatal marks errors that stopped the session.
	Fatal bool `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
