package wire

import (
	"encoding/json"
	"errors"
)

// MessageTypeSetTrait is the only inbound message type in this protocol
// version.
const MessageTypeSetTrait = "set_trait"

// Reserved keys of an encoded model object.
const (
	ModelIDKey = "__model_id__"
	KindKey    = "__kind__"
)

// Wire errors.
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrMalformedValue   = errors.New("malformed value")
	ErrUnserializable   = errors.New("value not serializable")
	ErrCoercion         = errors.New("value cannot be coerced")
)

// Request is an inbound client message.
type Request struct {
	Type    string          `json:"type"`
	ModelID string          `json:"model_id"`
	TName   string          `json:"tname"`
	Value   json.RawMessage `json:"value"`
}

// IsSetTrait reports whether r is an edit request.
func (r *Request) IsSetTrait() bool {
	return r.Type == MessageTypeSetTrait
}

// SerializedValue returns the still-encoded attribute value. Conforming
// clients send a JSON string holding the encoded value; a raw JSON value is
// accepted as-is.
func (r *Request) SerializedValue() string {
	var s string
	if err := json.Unmarshal(r.Value, &s); err == nil {
		return s
	}
	return string(r.Value)
}

// Notification is an outbound attribute change.
// Value holds the model-level value; it is converted on encoding.
type Notification struct {
	ModelID string
	TName   string
	Value   any
}

// payload is the JSON shape of a Notification.
type payload struct {
	ModelID string `json:"model_id"`
	TName   string `json:"tname"`
	Value   any    `json:"value"`
}
