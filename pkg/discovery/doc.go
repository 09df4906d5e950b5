// Package discovery implements mDNS/DNS-SD announcement of jigna servers.
//
// A server advertises one instance of the _jigna._tcp service. The
// instance name is user-configurable. TXT records carry:
//
//   - path: the websocket endpoint the page connects to (for example "/jigna")
//   - ver: the server version
//   - proto: the sync protocol revision
//
// Browsers aggregate instances seen on several interfaces into a single
// Service with the union of their addresses.
package discovery
