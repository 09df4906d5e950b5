package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jigna-sync/jigna-go/pkg/model"
)

// EncodeRequest encodes an edit request. value is JSON-encoded and carried
// as a string.
func EncodeRequest(modelID, tname string, value any) ([]byte, error) {
	inner, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	quoted, err := json.Marshal(string(inner))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	return json.Marshal(Request{
		Type:    MessageTypeSetTrait,
		ModelID: modelID,
		TName:   tname,
		Value:   quoted,
	})
}

// DecodeRequest decodes an inbound message. A message of unknown type is
// returned without error; callers dispatch on Type.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return &req, nil
}

// DecodeValue decodes a serialized attribute value. Numbers are returned as
// json.Number so that integers survive unchanged.
func DecodeValue(serialized string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(serialized)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedValue)
	}
	return v, nil
}

// EncodeNotification encodes n as a JSON object.
func EncodeNotification(n Notification) ([]byte, error) {
	data, err := json.Marshal(payload{
		ModelID: n.ModelID,
		TName:   n.TName,
		Value:   EncodeValue(n.Value),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	return data, nil
}

// DecodeNotification decodes a JSON notification. Numbers are returned as
// json.Number.
func DecodeNotification(data []byte) (Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var p payload
	if err := dec.Decode(&p); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Notification{ModelID: p.ModelID, TName: p.TName, Value: p.Value}, nil
}

// EncodeScript encodes n as a script that delivers the JSON notification to
// the client-side bridge.
func EncodeScript(n Notification) (string, error) {
	data, err := EncodeNotification(n)
	if err != nil {
		return "", err
	}
	// A JSON string literal is a valid script string literal; encoding/json
	// escapes U+2028 and U+2029.
	literal, err := json.Marshal(string(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	return "jigna.client.bridge.handle_event(" + string(literal) + ");", nil
}

// EncodeValue converts a model-level value into a JSON-compatible tree.
// Values it does not recognize are passed through for encoding/json to
// accept or reject.
func EncodeValue(v any) any {
	return encodeValue(v, make(map[*model.Model]struct{}))
}

func encodeValue(v any, path map[*model.Model]struct{}) any {
	switch val := v.(type) {
	case *model.Model:
		if val == nil {
			return nil
		}
		obj := map[string]any{
			ModelIDKey: val.ID(),
			KindKey:    val.Kind(),
		}
		if _, cyclic := path[val]; cyclic {
			return obj
		}
		path[val] = struct{}{}
		for name, attr := range val.Snapshot() {
			obj[name] = encodeValue(attr, path)
		}
		delete(path, val)
		return obj
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item, path)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = encodeValue(item, path)
		}
		return out
	default:
		return v
	}
}
