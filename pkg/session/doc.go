// Package session implements the synchronization core: it binds the
// visible attributes of registered models to a Transport and applies
// client edits back to the models.
//
// # Echo Suppression
//
// While a connection's edit is being applied, the connection is a member of
// the session's dispatching set. Notifications produced by that mutation
// are broadcast to every connection except the dispatching ones, so a
// client never receives its own change. The set entry is removed on every
// exit path of ApplyEdit. A transport that reflects the change back anyway
// produces a stray echo, which ApplyEdit recognizes by the set membership
// and discards.
//
// # Ordering
//
// Edits, connects and application updates all run on a single
// dispatch.Loop. A transport receives notifications in mutation order and
// must preserve that order per connection. Edits from one connection are
// applied one at a time.
//
// # Diagnostics
//
// Discarded edits have no client-visible effect. They are counted in Stats
// and reported to the protocol logger as DROP events.
package session
