// Package registry tracks which models, and which of their attributes, are
// exposed for synchronization.
//
// A Registry maps a model ID to the model and to its View. Both maps are
// always keyed identically. Registration is idempotent per model ID and
// happens while views are first rendered; the session binds change
// observers only after that render has populated the registry.
//
// There is no process-wide registry. Each session owns one and passes it to
// the components that need it.
package registry
