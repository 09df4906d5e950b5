// Package wire defines the JSON wire format exchanged between the server
// and UI clients.
//
// # Messages
//
// Client to server, an edit request:
//
//	{"type": "set_trait", "model_id": "<id>", "tname": "<attr>", "value": "<json>"}
//
// The value field is itself a JSON document carried as a string (double
// encoded). It may be "null". Messages with an unknown type are decoded but
// carry no operation; the receiver ignores them.
//
// Server to client, a change notification:
//
//	{"model_id": "<id>", "tname": "<attr>", "value": <json>}
//
// or, for embedded surfaces, a script that hands the same JSON document to
// the client-side bridge:
//
//	jigna.client.bridge.handle_event("{\"model_id\": ...}");
//
// # Nested Models
//
// A model-valued attribute is encoded as an object holding the nested
// model's attributes plus the reserved keys "__model_id__" and "__kind__".
// A model that is already being encoded further up the same value is
// emitted as a reference holding only those two keys, which keeps cyclic
// graphs finite.
//
// # Coercion
//
// Inbound values are coerced to the attribute's declared model.DataType:
// numeric strings become numbers, integral floats become integers, model
// references resolve through the registry. See Coerce.
package wire
